package jobs

import "strings"

// StorageKey namespaces an artifact by owner and job. Owner ids are reduced
// to a path-safe alphabet; the job id keeps keys unique.
func StorageKey(ownerID, jobID, ext string) string {
	if ext == "" {
		ext = "png"
	}
	return "images/" + safeSegment(ownerID) + "/" + safeSegment(jobID) + "." + ext
}

func safeSegment(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" || strings.Trim(s, ".") == "" {
		return "_"
	}
	return s
}
