package pagination

import "fmt"

// SortField names a comment attribute pages can be ordered by. The set is
// closed; anything else is rejected at parse time.
type SortField string

const (
	SortByUserName  SortField = "userName"
	SortByEmail     SortField = "email"
	SortByCreatedAt SortField = "createdAt"
)

func ParseSortField(s string) (SortField, error) {
	switch SortField(s) {
	case SortByUserName, SortByEmail, SortByCreatedAt:
		return SortField(s), nil
	case "":
		return SortByCreatedAt, nil
	default:
		return "", fmt.Errorf("unknown sort field %q", s)
	}
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(s) {
	case SortAsc, SortDesc:
		return SortOrder(s), nil
	case "":
		return SortDesc, nil
	default:
		return "", fmt.Errorf("unknown sort order %q", s)
	}
}

type PageRequest struct {
	Limit  *int
	Cursor *string
	SortBy SortField
	Order  SortOrder
}

type Page[T any] struct {
	Items       []T
	HasNextPage bool
	NextCursor  *string
}
