package thread

import (
	"regexp"
)

// MentionContext describes an in-progress "@query" token under the caret: the
// half-open byte range [Start, End) of the draft text it occupies, and the
// query with the leading "@" stripped. It exists only while the caret sits
// immediately after the token and is discarded on any edit that breaks it.
type MentionContext struct {
	Start int
	End   int
	Query string
}

// mentionTokenPattern matches an "@" followed by 1-50 mention characters,
// anchored to the end of the scanned prefix so only a token directly under
// the caret counts. A bare "@" never matches, which keeps lookups from firing
// before the user has typed anything.
var mentionTokenPattern = regexp.MustCompile(`@([A-Za-z0-9._-]{1,50})$`)

// DetectMention scans text for an in-progress mention token ending exactly at
// caret. Caret is a byte offset into text; out-of-range values clamp to the
// end of the text, which is also the fallback when the caller's editing
// control cannot report a caret position.
//
// Accepted suggestions always insert a trailing space, so a caret placed
// inside a completed mention never re-triggers detection: the space breaks
// the allowed-character run.
func DetectMention(text string, caret int) (MentionContext, bool) {
	if caret < 0 || caret > len(text) {
		caret = len(text)
	}

	match := mentionTokenPattern.FindStringSubmatch(text[:caret])
	if match == nil {
		return MentionContext{}, false
	}

	return MentionContext{
		Start: caret - len(match[0]),
		End:   caret,
		Query: match[1],
	}, true
}
