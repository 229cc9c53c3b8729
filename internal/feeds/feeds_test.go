package feeds_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keerthanak2k4/blocklist-ingest/internal/feeds"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	descriptors := feeds.Default()
	require.Len(t, descriptors, 6, "default registry should list six blocklist.de feeds")

	names := make(map[string]struct{})
	for _, d := range descriptors {
		names[d.Name] = struct{}{}
		require.Contains(t, d.URL, "lists.blocklist.de/lists/", "feed %q should point at blocklist.de", d.Name)
		require.Equal(t, "blocklist_"+d.Name, d.Collection, "collection name should be derived from the feed name")
	}
	require.Contains(t, names, "ssh")
	require.Contains(t, names, "bots")

	require.NoError(t, feeds.Validate(descriptors), "default registry should validate")
}

func TestLoad(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		content string
		noFile  bool

		wantFeeds int
		wantErr   bool
	}{
		"single feed with derived collection": {
			content: `
[[feeds]]
name = "ssh"
url = "https://lists.blocklist.de/lists/ssh.txt"
`,
			wantFeeds: 1,
		},
		"explicit collection is kept": {
			content: `
[[feeds]]
name = "ssh"
url = "https://lists.blocklist.de/lists/ssh.txt"
collection = "custom_ssh"
`,
			wantFeeds: 1,
		},
		"multiple feeds": {
			content: `
[[feeds]]
name = "ssh"
url = "https://lists.blocklist.de/lists/ssh.txt"

[[feeds]]
name = "mail"
url = "https://lists.blocklist.de/lists/mail.txt"
`,
			wantFeeds: 2,
		},

		// Error cases
		"missing file errors":  {noFile: true, wantErr: true},
		"invalid TOML errors":  {content: "[[feeds]\nname=", wantErr: true},
		"empty registry errors": {content: "", wantErr: true},
		"feed without name errors": {
			content: `
[[feeds]]
url = "https://lists.blocklist.de/lists/ssh.txt"
`,
			wantErr: true,
		},
		"duplicate feed names error": {
			content: `
[[feeds]]
name = "ssh"
url = "https://lists.blocklist.de/lists/ssh.txt"

[[feeds]]
name = "ssh"
url = "https://lists.blocklist.de/lists/ssh2.txt"
`,
			wantErr: true,
		},
		"non-http URL errors": {
			content: `
[[feeds]]
name = "ssh"
url = "ftp://lists.blocklist.de/lists/ssh.txt"
`,
			wantErr: true,
		},
		"unsafe collection name errors": {
			content: `
[[feeds]]
name = "ssh"
url = "https://lists.blocklist.de/lists/ssh.txt"
collection = "bad;drop table"
`,
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "feeds.toml")
			if !tc.noFile {
				require.NoError(t, os.WriteFile(path, []byte(tc.content), 0600), "Setup: failed to write feeds file")
			}

			descriptors, err := feeds.Load(path)
			if tc.wantErr {
				require.Error(t, err, "Load() should fail")
				return
			}
			require.NoError(t, err, "Load() error")
			require.Len(t, descriptors, tc.wantFeeds)
			for _, d := range descriptors {
				require.NotEmpty(t, d.Collection, "collection name should never be empty after Load")
			}
		})
	}
}
