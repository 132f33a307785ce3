package agreement

import "strconv"

// NextVersion computes the next version for a family's agreement lineage:
// the smallest unused successor greater than every existing version. Versions
// are numeric strings starting at "1" and are never reused, even after the
// holder is archived. Entries that do not parse as integers are skipped.
func NextVersion(existing []string) string {
	max := 0
	for _, v := range existing {
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return strconv.Itoa(max + 1)
}
