package mailbox

import (
	"fmt"
	"strings"
	"time"

	imap "github.com/emersion/go-imap/v2"
)

const searchDateLayout = "2-Jan-2006"

// ParseQuery turns a small IMAP SEARCH dialect into search criteria.
// Supported keys: ALL, SEEN, UNSEEN, FLAGGED, UNFLAGGED, ANSWERED,
// UNANSWERED, SINCE <date>, BEFORE <date>, FROM <s>, SUBJECT <s>,
// TEXT <s>, KEYWORD <k>, UNKEYWORD <k>. Dates use the 2-Jan-2006 form.
// Arguments may be double quoted.
func ParseQuery(query string) (*imap.SearchCriteria, error) {
	tokens, err := tokenize(query)
	if err != nil {
		return nil, err
	}

	criteria := &imap.SearchCriteria{}
	for i := 0; i < len(tokens); i++ {
		key := strings.ToUpper(tokens[i])
		arg := func() (string, error) {
			if i+1 >= len(tokens) {
				return "", fmt.Errorf("search key %s needs an argument", key)
			}
			i++
			return tokens[i], nil
		}

		switch key {
		case "ALL":
		case "SEEN":
			criteria.Flag = append(criteria.Flag, imap.FlagSeen)
		case "UNSEEN":
			criteria.NotFlag = append(criteria.NotFlag, imap.FlagSeen)
		case "FLAGGED":
			criteria.Flag = append(criteria.Flag, imap.FlagFlagged)
		case "UNFLAGGED":
			criteria.NotFlag = append(criteria.NotFlag, imap.FlagFlagged)
		case "ANSWERED":
			criteria.Flag = append(criteria.Flag, imap.FlagAnswered)
		case "UNANSWERED":
			criteria.NotFlag = append(criteria.NotFlag, imap.FlagAnswered)
		case "SINCE", "BEFORE":
			v, err := arg()
			if err != nil {
				return nil, err
			}
			t, err := time.Parse(searchDateLayout, v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s date %q: %w", key, v, err)
			}
			if key == "SINCE" {
				criteria.Since = t
			} else {
				criteria.Before = t
			}
		case "FROM", "SUBJECT":
			v, err := arg()
			if err != nil {
				return nil, err
			}
			field := "From"
			if key == "SUBJECT" {
				field = "Subject"
			}
			criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{Key: field, Value: v})
		case "TEXT":
			v, err := arg()
			if err != nil {
				return nil, err
			}
			criteria.Text = append(criteria.Text, v)
		case "KEYWORD", "UNKEYWORD":
			v, err := arg()
			if err != nil {
				return nil, err
			}
			if key == "KEYWORD" {
				criteria.Flag = append(criteria.Flag, imap.Flag(v))
			} else {
				criteria.NotFlag = append(criteria.NotFlag, imap.Flag(v))
			}
		default:
			return nil, fmt.Errorf("unsupported search key %q", tokens[i])
		}
	}
	return criteria, nil
}

func tokenize(query string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range query {
		switch {
		case r == '"':
			if inQuote {
				tokens = append(tokens, cur.String())
				cur.Reset()
			} else {
				flush()
			}
			inQuote = !inQuote
		case (r == ' ' || r == '\t') && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote in search query %q", query)
	}
	flush()
	return tokens, nil
}
