package domain

import (
	"fmt"
	"strings"
)

// MediaKind selects the payload shape of an outgoing message.
type MediaKind string

const (
	MediaText  MediaKind = "TEXT"
	MediaAudio MediaKind = "AUDIO"
	MediaImage MediaKind = "IMAGE"
)

// ParseMediaKind accepts the kind in any letter case.
func ParseMediaKind(s string) (MediaKind, error) {
	switch k := MediaKind(strings.ToUpper(strings.TrimSpace(s))); k {
	case MediaText, MediaAudio, MediaImage:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMediaKind, s)
}

// Media is a payload with its kind. TEXT carries the message text; AUDIO and
// IMAGE carry a URL or a base64 data URL.
type Media struct {
	Kind MediaKind `json:"kind"`
	Body string    `json:"body"`
}
