package matrix

const (
	DefaultOutletPageSize  = 12
	DefaultProductPageSize = 25
)

type Page struct {
	Number     int
	Size       int
	TotalPages int
	Start      int
	End        int
}

// Paginate clamps page into range and returns the slice bounds for it.
func Paginate(total int, page int, size int) Page {
	if size < 1 {
		size = 1
	}
	totalPages := (total + size - 1) / size
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return Page{Number: page, Size: size, TotalPages: totalPages, Start: start, End: end}
}
