package catalog

import "strings"

const (
	formMarker  = "form://"
	driveMarker = "gdrive://"

	repoGeneral     = "general"
	repoGoogleDrive = "google-drive"
	repoUngrouped   = "ungrouped"
)

// deriveRepo maps a point payload to its repo. The precedence is a
// total function: every payload yields exactly one non-empty repo.
func deriveRepo(payload map[string]any) string {
	sourceURL := stringField(payload, "source_url")

	if strings.HasPrefix(sourceURL, formMarker) {
		rest := strings.TrimPrefix(sourceURL, formMarker)
		if segment, _, _ := strings.Cut(rest, "/"); segment != "" {
			return segment
		}
		return repoGeneral
	}

	if strings.HasPrefix(sourceURL, driveMarker) {
		return repoGoogleDrive
	}

	if repo := stringField(payload, "repo"); repo != "" {
		return repo
	}

	return repoUngrouped
}

func stringField(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	s, _ := payload[key].(string)
	return s
}

func stringSliceField(payload map[string]any, key string) []string {
	if payload == nil {
		return nil
	}

	raw, ok := payload[key].([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
