// Package feeds holds the registry of upstream blocklist feeds.
//
// The registry is fixed at process start: either the built-in blocklist.de
// endpoints or the contents of a TOML feeds file. It never changes while the
// pipeline runs.
package feeds

import (
	"fmt"
	"net/url"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Descriptor describes one feed endpoint and its destination collection.
type Descriptor struct {
	Name       string `toml:"name"`
	URL        string `toml:"url"`
	Collection string `toml:"collection,omitempty"`
}

type tomlRegistry struct {
	Feeds []Descriptor `toml:"feeds"`
}

// collectionRe restricts collection names to safe SQL identifiers.
var collectionRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Default returns the built-in blocklist.de feed registry.
func Default() []Descriptor {
	services := []string{"ssh", "mail", "apache", "imap", "ftp", "bots"}

	descriptors := make([]Descriptor, 0, len(services))
	for _, svc := range services {
		descriptors = append(descriptors, Descriptor{
			Name:       svc,
			URL:        fmt.Sprintf("https://lists.blocklist.de/lists/%s.txt", svc),
			Collection: CollectionName(svc),
		})
	}
	return descriptors
}

// Load reads a feed registry from the TOML file at path.
//
// Descriptors without an explicit collection get one derived from the feed name.
func Load(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading feeds file: %w", err)
	}

	var reg tomlRegistry
	if err := toml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("error parsing feeds file: %w", err)
	}
	if len(reg.Feeds) == 0 {
		return nil, fmt.Errorf("feeds file %q defines no feeds", path)
	}

	for i := range reg.Feeds {
		if reg.Feeds[i].Collection == "" {
			reg.Feeds[i].Collection = CollectionName(reg.Feeds[i].Name)
		}
	}

	if err := Validate(reg.Feeds); err != nil {
		return nil, err
	}
	return reg.Feeds, nil
}

// CollectionName derives the destination collection name for a feed.
func CollectionName(feed string) string {
	return "blocklist_" + feed
}

// Validate checks every descriptor for a usable name, URL and collection name.
func Validate(descriptors []Descriptor) error {
	seen := make(map[string]struct{}, len(descriptors))
	for _, d := range descriptors {
		if d.Name == "" {
			return fmt.Errorf("feed with URL %q has no name", d.URL)
		}
		if _, ok := seen[d.Name]; ok {
			return fmt.Errorf("duplicate feed name %q", d.Name)
		}
		seen[d.Name] = struct{}{}

		u, err := url.Parse(d.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("feed %q has an invalid URL %q", d.Name, d.URL)
		}

		if !collectionRe.MatchString(d.Collection) {
			return fmt.Errorf("feed %q has an invalid collection name %q", d.Name, d.Collection)
		}
	}
	return nil
}
