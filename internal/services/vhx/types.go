package vhx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Entity types carried by collection listings.
const (
	EntityCollection = "collection"
	EntityVideo      = "video"
)

// Credentials are the password-grant inputs for the token endpoint.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

// Token is a bearer string with its absolute expiry.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ValidAt reports whether the token may be used at now.
func (t Token) ValidAt(now time.Time) bool {
	return t.AccessToken != "" && t.ExpiresAt.After(now)
}

// ID is a remote identifier that the API renders either as a JSON number or
// a string. It is normalised to its decimal string form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("id: non-integer value %s", n)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// OptionalInt decodes a number, numeric string or null. Null and absent
// values decode to zero.
type OptionalInt int

func (v *OptionalInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) || len(data) == 0 {
		*v = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*v = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("integer field: %w", err)
		}
		*v = OptionalInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("integer field: %w", err)
	}
	*v = OptionalInt(n)
	return nil
}

// Entity is one element of a collection listing.
type Entity struct {
	Type   string     `json:"entity_type"`
	ID     ID         `json:"entity_id"`
	Entity EntityBody `json:"entity"`
}

// EntityBody carries the descriptive part of an entity.
type EntityBody struct {
	Title    string   `json:"title"`
	Metadata Metadata `json:"metadata"`
}

// Metadata holds episode placement details. Either part may be absent.
type Metadata struct {
	Season struct {
		Number        OptionalInt `json:"number"`
		EpisodeNumber OptionalInt `json:"episode_number"`
	} `json:"season"`
	Series struct {
		Name string `json:"name"`
	} `json:"series"`
}

// Collection is the metadata record of a series or season.
type Collection struct {
	ID    ID     `json:"id"`
	Title string `json:"title"`
	Name  string `json:"name"`
}

// DisplayTitle prefers the title, falling back to the name.
func (c Collection) DisplayTitle() string {
	if t := strings.TrimSpace(c.Title); t != "" {
		return t
	}
	return strings.TrimSpace(c.Name)
}

// Video is the metadata record of a single video.
type Video struct {
	ID    ID     `json:"id"`
	Title string `json:"title"`
	Name  string `json:"name"`
}

// DisplayTitle prefers the title, falling back to the name.
func (v Video) DisplayTitle() string {
	if t := strings.TrimSpace(v.Title); t != "" {
		return t
	}
	return strings.TrimSpace(v.Name)
}

// Stream describes one delivery option.
type Stream struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

// DeliveryManifest lists the streams offered for a video.
type DeliveryManifest struct {
	Streams []Stream `json:"streams"`
}

// SelfLink is the hypermedia self reference attached to listings.
type SelfLink struct {
	Links struct {
		Self struct {
			Href string `json:"href"`
		} `json:"self"`
	} `json:"_links"`
}
