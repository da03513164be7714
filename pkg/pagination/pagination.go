package pagination

const (
	// DefaultPage is the first page.
	DefaultPage = 1
	// DefaultSize is the page size when one is not provided.
	DefaultSize = 20
	// MaxSize caps how many rows any page query can request.
	MaxSize = 100
)

// Normalize enforces the default page, default size and maximum size.
func Normalize(page, size int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if size <= 0 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	return page, size
}

// FromSkipTake converts skip/take style parameters into page/size.
// skip is rounded down to the start of its page.
func FromSkipTake(skip, take int) (int, int) {
	_, size := Normalize(1, take)
	if skip < 0 {
		skip = 0
	}
	return skip/size + 1, size
}
