package feature

import "strconv"

// parseIntValue parses a query-supplied value string into the int32
// comparand used by int-feature filters.
func parseIntValue(value string) (int32, error) {
	n, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(n), nil
}
