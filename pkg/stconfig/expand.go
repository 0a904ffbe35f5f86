package stconfig

import "strings"

func isVarChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// expandEnv replaces $VAR and ${VAR} like os.Expand, but a variable that
// the lookup function does not know is left as is instead of being
// replaced with an empty string.
func expandEnv(s string, lookup func(string) (string, bool)) string {
	b := strings.Builder{}
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] != '$' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}

		var name string

		end := i + 1

		if s[i+1] == '{' {
			j := strings.IndexByte(s[i+2:], '}')
			if j < 0 {
				b.WriteByte(s[i])
				continue
			}

			name = s[i+2 : i+2+j]
			end = i + 2 + j + 1
		} else {
			for end < len(s) && isVarChar(s[end]) {
				end++
			}

			name = s[i+1 : end]
		}

		if val, ok := lookup(name); name != "" && ok {
			b.WriteString(val)
			i = end - 1

			continue
		}

		b.WriteByte(s[i])
	}

	return b.String()
}
