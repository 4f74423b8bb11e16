package session

import "strings"

// splitTrackPath resolves a wire Subscribe's full track path into the
// broadcast path registered with the local origin.Registry and the
// track name within it. The wire Subscribe message carries a single
// flat Path (spec §6's grammar has no separate track-name field),
// matching moq-lite's flat addressing: the track name is the final
// path segment, and everything before it is the broadcast path. See
// DESIGN.md's Open Question resolution for "Subscribe.Path semantics".
func splitTrackPath(path string) (broadcastPath, trackName string) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

func joinTrackPath(broadcastPath, trackName string) string {
	if broadcastPath == "" {
		return trackName
	}
	return broadcastPath + "/" + trackName
}
