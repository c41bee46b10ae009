package media

import (
	"sort"

	"github.com/facette/natsort"
)

// Bucket maps a location code string to the new photos staged for it. A
// record belongs to at most one code; adding it elsewhere transfers it.
// Iteration order is natural order of codes and of filenames.
type Bucket struct {
	photos map[string][]*PhotoRecord
	owner  map[*PhotoRecord]string
}

func NewBucket() *Bucket {
	return &Bucket{
		photos: make(map[string][]*PhotoRecord),
		owner:  make(map[*PhotoRecord]string),
	}
}

// Add stages p under code, keeping filenames in natural order.
func (b *Bucket) Add(code string, p *PhotoRecord) {
	if prev, ok := b.owner[p]; ok {
		if prev == code {
			return
		}
		b.Remove(prev, p)
	}
	list := append(b.photos[code], p)
	sort.SliceStable(list, func(i, j int) bool {
		return natsort.Compare(list[i].Filename, list[j].Filename)
	})
	b.photos[code] = list
	b.owner[p] = code
}

// Remove drops p from code. It reports whether p was there.
func (b *Bucket) Remove(code string, p *PhotoRecord) bool {
	list := b.photos[code]
	for i, q := range list {
		if q != p {
			continue
		}
		list = append(list[:i:i], list[i+1:]...)
		if len(list) == 0 {
			delete(b.photos, code)
		} else {
			b.photos[code] = list
		}
		delete(b.owner, p)
		return true
	}
	return false
}

// Photos returns a copy of the photos staged for code.
func (b *Bucket) Photos(code string) []*PhotoRecord {
	list := b.photos[code]
	if len(list) == 0 {
		return nil
	}
	out := make([]*PhotoRecord, len(list))
	copy(out, list)
	return out
}

// Has reports whether code has at least one staged photo.
func (b *Bucket) Has(code string) bool {
	return len(b.photos[code]) > 0
}

// Owner returns the code p is staged under.
func (b *Bucket) Owner(p *PhotoRecord) (string, bool) {
	code, ok := b.owner[p]
	return code, ok
}

// Codes lists codes with staged photos in natural order.
func (b *Bucket) Codes() []string {
	codes := make([]string, 0, len(b.photos))
	for code := range b.photos {
		codes = append(codes, code)
	}
	natsort.Sort(codes)
	return codes
}

// Len is the total number of staged photos.
func (b *Bucket) Len() int {
	return len(b.owner)
}
