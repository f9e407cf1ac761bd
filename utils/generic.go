package utils

// Unique keeps the first occurrence of every item.
func Unique(a []string) []string {
	seen := make(map[string]bool, len(a))
	result := make([]string, 0, len(a))
	for _, item := range a {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}
	return result
}

// Chunks splits a into consecutive slices of at most size items.
// A non positive size yields a single chunk.
func Chunks(a []string, size int) [][]string {
	chunks := make([][]string, 0)
	if size <= 0 {
		size = len(a)
	}
	for len(a) > 0 {
		end := size
		if end > len(a) {
			end = len(a)
		}
		chunks = append(chunks, a[:end])
		a = a[end:]
	}
	return chunks
}
