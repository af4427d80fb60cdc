package epubfile

import "errors"

// Sentinel errors returned by the epubfile package.
var (
	// ErrUnknownID indicates an operation referenced an id with no live
	// manifest entry. Removed ids stay unknown for the rest of the session.
	ErrUnknownID = errors.New("epubfile: unknown manifest id")

	// ErrDuplicateID indicates an add would register an id that is already
	// live, or that was used earlier in this session. Ids are never reused.
	ErrDuplicateID = errors.New("epubfile: manifest id already used")

	// ErrDuplicatePath indicates an add or rename would produce two live
	// entries with the same archive path.
	ErrDuplicatePath = errors.New("epubfile: archive path already in manifest")

	// ErrInvalidSpine indicates a spine update referenced an id that is
	// absent, not a text document, or duplicated in the requested order.
	ErrInvalidSpine = errors.New("epubfile: invalid spine order")

	// ErrInvalidCover indicates a cover update referenced an id that is
	// absent or not an image.
	ErrInvalidCover = errors.New("epubfile: invalid cover id")

	// ErrReadOnly indicates a mutating method was called on a book opened
	// with WithReadOnly.
	ErrReadOnly = errors.New("epubfile: book is read-only")

	// ErrDRMProtected indicates the ePub file is protected by DRM
	// (e.g., Adobe ADEPT, Apple FairPlay, Readium LCP) and cannot be edited.
	ErrDRMProtected = errors.New("epubfile: file is DRM protected")

	// ErrInvalidEPub indicates the file is not a valid ePub
	// (e.g., missing container.xml and no .opf file found).
	ErrInvalidEPub = errors.New("epubfile: invalid ePub file")

	// ErrFileNotFound indicates the requested file does not exist
	// in the ePub archive.
	ErrFileNotFound = errors.New("epubfile: file not found in archive")

	// ErrNoCover indicates no cover image could be detected
	// using any of the supported strategies.
	ErrNoCover = errors.New("epubfile: no cover image found")
)
