package routeros

import "strings"

// Reply words
const (
	ReplyRe    = "!re"
	ReplyDone  = "!done"
	ReplyTrap  = "!trap"
	ReplyFatal = "!fatal"
)

// Sentence is one decoded reply sentence
type Sentence struct {
	Type       string
	Tag        string
	Attributes map[string]string
}

// Reply collects the sentences answering one command
type Reply struct {
	// Rows holds one attribute table per !re sentence, in order
	Rows []map[string]string

	// Done holds attributes carried by the final !done sentence
	Done map[string]string
}

// ParseSentence splits reply words into type, tag and attributes.
// Attribute words have the form "=key=value"; the value may contain '='.
func ParseSentence(words []string) Sentence {
	s := Sentence{Attributes: make(map[string]string)}
	if len(words) == 0 {
		return s
	}

	s.Type = words[0]
	for _, word := range words[1:] {
		switch {
		case strings.HasPrefix(word, ".tag="):
			s.Tag = word[len(".tag="):]
		case strings.HasPrefix(word, "="):
			key, value := splitAttribute(word[1:])
			if key != "" {
				s.Attributes[key] = value
			}
		}
	}

	return s
}

func splitAttribute(word string) (string, string) {
	i := strings.IndexByte(word, '=')
	if i < 0 {
		return word, ""
	}
	return word[:i], word[i+1:]
}

// Param is a command word after the command path
type Param struct {
	prefix byte
	Key    string
	Value  string
}

// Attr builds an "=key=value" attribute word
func Attr(key, value string) Param {
	return Param{prefix: '=', Key: key, Value: value}
}

// Query builds a "?key=value" query word
func Query(key, value string) Param {
	return Param{prefix: '?', Key: key, Value: value}
}

// Word returns the wire form of the parameter
func (p Param) Word() string {
	prefix := p.prefix
	if prefix == 0 {
		prefix = '='
	}
	return string(prefix) + p.Key + "=" + p.Value
}
