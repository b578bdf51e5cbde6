package protocol

import "github.com/buger/jsonparser"

// Candidate paths into the event property bag, most specific first.
// Extraction scans them in order; the first present non-empty string
// wins. Different host versions nest the same field differently, which
// is why each extractor carries several spellings.
var (
	sessionIDPaths = [][]string{
		{"sessionID"},
		{"session", "id"},
		{"info", "sessionID"},
		{"part", "sessionID"},
		{"message", "sessionID"},
		{"permission", "sessionID"},
		{"properties", "sessionID"},
	}

	titlePaths = [][]string{
		{"info", "title"},
		{"session", "title"},
		{"title"},
		{"info", "name"},
		{"session", "name"},
	}

	parentIDPaths = [][]string{
		{"info", "parentID"},
		{"session", "parentID"},
		{"parentID"},
	}

	messageIDPaths = [][]string{
		{"info", "id"},
		{"message", "id"},
		{"part", "messageID"},
		{"messageID"},
	}

	rolePaths = [][]string{
		{"info", "role"},
		{"message", "role"},
		{"role"},
	}

	messageTextPaths = [][]string{
		{"info", "text"},
		{"message", "text"},
		{"content"},
		{"text"},
	}

	partTextPaths = [][]string{
		{"part", "text"},
		{"text"},
		{"delta"},
	}

	statusPaths = [][]string{
		{"status"},
		{"info", "status"},
		{"session", "status"},
	}

	statusMessagePaths = [][]string{
		{"message"},
		{"info", "message"},
		{"statusMessage"},
	}

	errorNamePaths = [][]string{
		{"error", "name"},
		{"error", "data", "name"},
		{"name"},
	}

	errorMessagePaths = [][]string{
		{"error", "data", "message"},
		{"error", "message"},
		{"message"},
	}

	permissionIDPaths = [][]string{
		{"permission", "id"},
		{"id"},
	}

	permissionTitlePaths = [][]string{
		{"permission", "title"},
		{"title"},
	}

	permissionDetailPaths = [][]string{
		{"permission", "pattern"},
		{"permission", "metadata", "description"},
		{"pattern"},
		{"description"},
	}

	toolNamePaths = [][]string{
		{"tool"},
		{"part", "tool"},
		{"tool", "name"},
		{"name"},
	}

	callIDPaths = [][]string{
		{"callID"},
		{"part", "callID"},
		{"call_id"},
		{"id"},
	}
)

// ExtractSessionID scans the candidate session-id paths.
func ExtractSessionID(props []byte) (string, bool) {
	return firstString(props, sessionIDPaths)
}

// ExtractTitleCandidates returns every title candidate present, in path
// order. The caller picks the first non-generic one.
func ExtractTitleCandidates(props []byte) []string {
	var candidates []string
	for _, path := range titlePaths {
		if v, err := jsonparser.GetString(props, path...); err == nil && v != "" {
			candidates = append(candidates, v)
		}
	}
	return candidates
}

// firstString returns the first present non-empty string among the paths.
func firstString(props []byte, paths [][]string) (string, bool) {
	if len(props) == 0 {
		return "", false
	}
	for _, path := range paths {
		if v, err := jsonparser.GetString(props, path...); err == nil && v != "" {
			return v, true
		}
	}
	return "", false
}

// stringAt is firstString without the found flag, for optional fields.
func stringAt(props []byte, paths [][]string) string {
	v, _ := firstString(props, paths)
	return v
}
