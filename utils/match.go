package utils

import "strings"

// Match reports whether value matches pattern. Patterns may contain:
//   - '*' matching any run of characters within a segment (a trailing
//     lone '*' matches everything remaining).
//   - ':' parameters (e.g. ':id') matching a single '/'-delimited segment.
//   - a trailing "/*" matching a whole subtree of hierarchical resources.
func Match(value, pattern string) bool {
	if pattern == "*" {
		return true
	}
	vIndex, pIndex := 0, 0
	vLen, pLen := len(value), len(pattern)

	for pIndex < pLen {
		switch pattern[pIndex] {
		case '*':
			if pIndex == pLen-1 {
				return true
			}
			for vIndex < vLen && value[vIndex] != '/' {
				vIndex++
			}
			pIndex++
		case ':':
			pIndex++
			for pIndex < pLen && pattern[pIndex] != '/' {
				pIndex++
			}
			for vIndex < vLen && value[vIndex] != '/' {
				vIndex++
			}
		default:
			if vIndex < vLen && pattern[pIndex] == value[vIndex] {
				vIndex++
				pIndex++
			} else {
				if strings.HasSuffix(pattern, "/*") {
					return strings.HasPrefix(value, strings.TrimSuffix(pattern, "/*"))
				}
				return false
			}
		}
	}

	if strings.HasSuffix(pattern, "/*") {
		return strings.HasPrefix(value, strings.TrimSuffix(pattern, "/*"))
	}
	return vIndex == vLen && pIndex == pLen
}
