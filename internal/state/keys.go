package state

import (
	"fmt"
	"sort"
)

// Key names a recognized session state entry.
type Key string

// Recognized state keys.
const (
	KeyDestination      Key = "destination"
	KeyIdeasVideos      Key = "ideas_videos"
	KeyIdeasRawText     Key = "ideas_raw_text"
	KeyIdeasRefinedText Key = "ideas_refined_text"
	KeyItinerary        Key = "itinerary"
	KeyIsInitialized    Key = "is_initialized"
	KeyJustRestored     Key = "_just_restored"
	KeyVideoCandidates  Key = "video_candidates"
	KeyItineraryDraft   Key = "itinerary_draft"
)

// Kind is the value type bound to a key.
type Kind int

// Value kinds.
const (
	KindString Kind = iota + 1
	KindStringList
	KindBool
	KindItinerary
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindStringList:
		return "list of string"
	case KindBool:
		return "bool"
	case KindItinerary:
		return "itinerary"
	default:
		return "unknown"
	}
}

var schema = map[Key]Kind{
	KeyDestination:      KindString,
	KeyIdeasVideos:      KindStringList,
	KeyIdeasRawText:     KindStringList,
	KeyIdeasRefinedText: KindStringList,
	KeyItinerary:        KindItinerary,
	KeyIsInitialized:    KindBool,
	KeyJustRestored:     KindBool,
	KeyVideoCandidates:  KindStringList,
	KeyItineraryDraft:   KindItinerary,
}

// Kind returns the value kind of k, or 0 for an unknown key.
func (k Key) Kind() Kind {
	return schema[k]
}

// Known reports whether k is a recognized key.
func (k Key) Known() bool {
	_, ok := schema[k]
	return ok
}

// ParseKey validates a raw key name.
func ParseKey(name string) (Key, error) {
	k := Key(name)
	if !k.Known() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, name)
	}
	return k, nil
}

// KnownKeys returns all recognized keys in lexical order.
func KnownKeys() []Key {
	keys := make([]Key, 0, len(schema))
	for k := range schema {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
}
