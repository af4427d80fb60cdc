package epubfile

import (
	"fmt"
	"iter"
	"slices"

	"github.com/google/uuid"
)

// Registry is the single source of truth for which files belong to a package,
// their reading order, and their designated roles (cover, spine membership).
// It performs no I/O and never parses content; bytes staged through
// SetContent are opaque.
//
// All mutating operations are atomic: on error the observable state is
// unchanged. A Registry is owned by one open package session and is not safe
// for concurrent use.
type Registry struct {
	entries map[string]*registryEntry
	byPath  map[string]string // live archive path -> id
	order   []string          // live ids in insertion order
	spine   []string
	linear  map[string]bool // spine id -> linear flag
	cover   string
	seen    map[string]bool // every id ever registered; never shrinks
}

type registryEntry struct {
	ManifestEntry
	content []byte
	staged  bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*registryEntry),
		byPath:  make(map[string]string),
		linear:  make(map[string]bool),
		seen:    make(map[string]bool),
	}
}

// Add registers a new entry under a freshly minted id and stages its content.
// The id is unique for the lifetime of the registry, including across
// removals. Returns ErrDuplicatePath if path already denotes a live entry.
func (r *Registry) Add(path, mediaType string, content []byte) (string, error) {
	id := r.mintID()
	if err := r.AddWithID(id, path, mediaType, content); err != nil {
		return "", err
	}
	return id, nil
}

// AddWithID registers a new entry under a caller-supplied id. The id must
// never have been used in this session: reusing the id of a removed entry is
// rejected with ErrDuplicateID, the same as a live collision.
func (r *Registry) AddWithID(id, path, mediaType string, content []byte) error {
	if r.seen[id] {
		return fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}
	if other, ok := r.byPath[path]; ok {
		return fmt.Errorf("%w: %q (held by %q)", ErrDuplicatePath, path, other)
	}

	e := &registryEntry{
		ManifestEntry: ManifestEntry{
			ID:        id,
			Path:      path,
			MediaType: mediaType,
			Kind:      KindOf(mediaType),
		},
		content: content,
		staged:  content != nil,
	}
	r.entries[id] = e
	r.byPath[path] = id
	r.order = append(r.order, id)
	r.seen[id] = true
	return nil
}

// Remove deletes the entry and cascades: the id is dropped from the spine,
// the cover pointer is cleared if it pointed there, and the id becomes
// permanently unusable. Returns ErrUnknownID if id is not live.
func (r *Registry) Remove(id string) error {
	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownID, id)
	}

	delete(r.entries, id)
	delete(r.byPath, e.Path)
	delete(r.linear, id)
	if idx := slices.Index(r.order, id); idx >= 0 {
		r.order = slices.Delete(r.order, idx, idx+1)
	}
	if idx := slices.Index(r.spine, id); idx >= 0 {
		r.spine = slices.Delete(r.spine, idx, idx+1)
	}
	if r.cover == id {
		r.cover = ""
	}
	return nil
}

// Rename changes the archive path of a live entry. Identity, kind, spine
// membership, spine order, and cover status are unaffected.
func (r *Registry) Rename(id, newPath string) error {
	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownID, id)
	}
	if other, ok := r.byPath[newPath]; ok && other != id {
		return fmt.Errorf("%w: %q (held by %q)", ErrDuplicatePath, newPath, other)
	}

	delete(r.byPath, e.Path)
	e.Path = newPath
	r.byPath[newPath] = id
	return nil
}

// SetSpineOrder replaces the spine wholesale. Every id must be live and of
// KindText, and no id may repeat; otherwise ErrInvalidSpine is returned and
// the current spine is left untouched. Linear flags are preserved for ids
// that remain in the spine; ids entering the spine default to linear.
func (r *Registry) SetSpineOrder(ids []string) error {
	inNew := make(map[string]bool, len(ids))
	for _, id := range ids {
		e, ok := r.entries[id]
		if !ok {
			return fmt.Errorf("%w: %q is not in the manifest", ErrInvalidSpine, id)
		}
		if e.Kind != KindText {
			return fmt.Errorf("%w: %q is %s, not text", ErrInvalidSpine, id, e.Kind)
		}
		if inNew[id] {
			return fmt.Errorf("%w: %q appears more than once", ErrInvalidSpine, id)
		}
		inNew[id] = true
	}

	r.spine = slices.Clone(ids)
	for id := range r.linear {
		if !inNew[id] {
			delete(r.linear, id)
		}
	}
	return nil
}

// SetLinear marks a spine item as linear or non-linear. Returns ErrUnknownID
// if id is not live and ErrInvalidSpine if it is live but not in the spine.
func (r *Registry) SetLinear(id string, linear bool) error {
	if _, ok := r.entries[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownID, id)
	}
	if !slices.Contains(r.spine, id) {
		return fmt.Errorf("%w: %q is not in the spine", ErrInvalidSpine, id)
	}
	if linear {
		delete(r.linear, id)
	} else {
		r.linear[id] = false
	}
	return nil
}

// Linear reports whether a spine item is part of the linear reading order.
// Returns ErrUnknownID if id is not live and ErrInvalidSpine if it is live
// but not in the spine.
func (r *Registry) Linear(id string) (bool, error) {
	if _, ok := r.entries[id]; !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownID, id)
	}
	if !slices.Contains(r.spine, id) {
		return false, fmt.Errorf("%w: %q is not in the spine", ErrInvalidSpine, id)
	}
	_, nonLinear := r.linear[id]
	return !nonLinear, nil
}

// InSpine reports whether id is currently in the spine.
func (r *Registry) InSpine(id string) bool {
	return slices.Contains(r.spine, id)
}

// SpineOrder returns the current spine as a defensive copy; mutating the
// returned slice does not affect the registry.
func (r *Registry) SpineOrder() []string {
	return slices.Clone(r.spine)
}

// LinearSpineOrder returns the spine restricted to linear items.
func (r *Registry) LinearSpineOrder() []string {
	out := make([]string, 0, len(r.spine))
	for _, id := range r.spine {
		if _, nonLinear := r.linear[id]; !nonLinear {
			out = append(out, id)
		}
	}
	return out
}

// SetCover designates id as the cover image. Returns ErrInvalidCover if id
// is absent or not of KindImage; a prior cover is left untouched on error.
func (r *Registry) SetCover(id string) error {
	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: no live entry %q", ErrInvalidCover, id)
	}
	if e.Kind != KindImage {
		return fmt.Errorf("%w: %q is %s, not image", ErrInvalidCover, id, e.Kind)
	}
	r.cover = id
	return nil
}

// ClearCover removes the cover designation, if any.
func (r *Registry) ClearCover() {
	r.cover = ""
}

// Cover returns the designated cover id, or ("", false) when none is set.
func (r *Registry) Cover() (string, bool) {
	if r.cover == "" {
		return "", false
	}
	return r.cover, true
}

// Entry returns a copy of the manifest record for id.
func (r *Registry) Entry(id string) (ManifestEntry, error) {
	e, ok := r.entries[id]
	if !ok {
		return ManifestEntry{}, fmt.Errorf("%w: %q", ErrUnknownID, id)
	}
	return e.ManifestEntry, nil
}

// IDByPath resolves a live archive path to its id.
func (r *Registry) IDByPath(path string) (string, bool) {
	id, ok := r.byPath[path]
	return id, ok
}

// SetContent stages new bytes for id. Staged content replaces whatever the
// host would otherwise read from durable storage at save time.
func (r *Registry) SetContent(id string, content []byte) error {
	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownID, id)
	}
	e.content = content
	e.staged = true
	return nil
}

// Content returns the staged bytes for id and whether any are staged.
// Unstaged entries report (nil, false, nil); their bytes live in the
// underlying archive.
func (r *Registry) Content(id string) ([]byte, bool, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownID, id)
	}
	return e.content, e.staged, nil
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	return len(r.order)
}

// IDs iterates over all live ids in insertion order.
func (r *Registry) IDs() iter.Seq[string] {
	return r.byKind(nil)
}

// Texts iterates over live text-document ids in insertion order.
// Use SpineOrder for reading order.
func (r *Registry) Texts() iter.Seq[string] {
	return r.byKind(func(k Kind) bool { return k == KindText })
}

// Images iterates over live image ids in insertion order.
func (r *Registry) Images() iter.Seq[string] {
	return r.byKind(func(k Kind) bool { return k == KindImage })
}

// Styles iterates over live stylesheet ids in insertion order.
func (r *Registry) Styles() iter.Seq[string] {
	return r.byKind(func(k Kind) bool { return k == KindStyle })
}

// Fonts iterates over live font ids in insertion order.
func (r *Registry) Fonts() iter.Seq[string] {
	return r.byKind(func(k Kind) bool { return k == KindFont })
}

// Others iterates over every live id that is neither text nor image, in
// insertion order. Texts, Images, and Others partition the live entries.
func (r *Registry) Others() iter.Seq[string] {
	return r.byKind(func(k Kind) bool { return k != KindText && k != KindImage })
}

// byKind returns a restartable sequence over live ids whose kind satisfies
// keep. A nil keep accepts every kind. The sequence reflects registry state
// at iteration time, not at call time.
func (r *Registry) byKind(keep func(Kind) bool) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, id := range r.order {
			e, ok := r.entries[id]
			if !ok {
				continue
			}
			if keep != nil && !keep(e.Kind) {
				continue
			}
			if !yield(id) {
				return
			}
		}
	}
}

// mintID generates a fresh id that has never been used in this session.
// The "item-" prefix keeps ids valid as XML NAMEs in the serialized OPF.
func (r *Registry) mintID() string {
	for {
		id := "item-" + uuid.NewString()
		if !r.seen[id] {
			return id
		}
	}
}
