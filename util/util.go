package util

func MinInt(a int, b int) int {
	if a < b {
		return a
	}
	return b
}

func StringIn(list []string, value string) bool {
	for _, val := range list {
		if val == value {
			return true
		}
	}
	return false
}
