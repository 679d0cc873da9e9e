package excursion

import "fmt"

func cacheKeyExcursion(id string) string {
	return fmt.Sprintf("excursion:%s", id)
}
