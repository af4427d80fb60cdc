package epubfile

import (
	"mime"
	"path"
	"strings"
)

// extensionMediaTypes maps file extensions to media types for the cases the
// platform MIME database gets wrong or does not know (ePub-specific types,
// fonts, SMIL). Extensions are without the leading dot, lowercase.
var extensionMediaTypes = map[string]string{
	"htm":   "application/xhtml+xml",
	"html":  "application/xhtml+xml",
	"ncx":   "application/x-dtbncx+xml",
	"otf":   "font/otf",
	"pls":   "application/pls+xml",
	"smi":   "application/smil+xml",
	"smil":  "application/smil+xml",
	"sml":   "application/smil+xml",
	"ttf":   "font/ttf",
	"woff":  "font/woff",
	"woff2": "font/woff2",
	"xhtml": "application/xhtml+xml",
	"xpgt":  "application/vnd.adobe-page-template+xml",
}

// mediaTypeDirectories maps media types (or their major type) to the
// conventional content subdirectory used by Normalize and AddFile.
// NCX files stay next to the OPF.
var mediaTypeDirectories = map[string]string{
	"application/font-sfnt":    "Fonts",
	"application/x-dtbncx+xml": ".",
	"application/x-font-ttf":   "Fonts",
	"application/xhtml+xml":    "Text",
	"audio":                    "Audio",
	"font":                     "Fonts",
	"image":                    "Images",
	"text/css":                 "Styles",
	"video":                    "Video",
}

// fontMediaTypes lists full media types that classify as KindFont but whose
// major type is not "font".
var fontMediaTypes = map[string]bool{
	"application/font-sfnt":       true,
	"application/x-font-ttf":      true,
	"application/x-font-otf":      true,
	"application/x-font-opentype": true,
	"application/vnd.ms-opentype": true,
	"application/font-woff":       true,
	"application/font-woff2":      true,
}

// mediaTypeForName guesses the media type for a file name: the explicit
// table first, then the platform MIME database, then octet-stream.
func mediaTypeForName(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	if mt, ok := extensionMediaTypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension("." + ext); mt != "" {
		// Strip any parameters like "; charset=utf-8".
		if idx := strings.IndexByte(mt, ';'); idx >= 0 {
			mt = strings.TrimSpace(mt[:idx])
		}
		return mt
	}
	return "application/octet-stream"
}

// directoryForMediaType returns the content subdirectory for a media type,
// falling back from the full type to the major type, then to "Misc".
func directoryForMediaType(mediaType string) string {
	if dir, ok := mediaTypeDirectories[mediaType]; ok {
		return dir
	}
	major, _, _ := strings.Cut(mediaType, "/")
	if dir, ok := mediaTypeDirectories[major]; ok {
		return dir
	}
	return "Misc"
}

// KindOf classifies a media type. Unknown media types are KindOther.
func KindOf(mediaType string) Kind {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if idx := strings.IndexByte(mt, ';'); idx >= 0 {
		mt = strings.TrimSpace(mt[:idx])
	}
	switch {
	case mt == "application/xhtml+xml" || mt == "text/html":
		return KindText
	case strings.HasPrefix(mt, "image/"):
		return KindImage
	case mt == "text/css":
		return KindStyle
	case strings.HasPrefix(mt, "font/") || fontMediaTypes[mt]:
		return KindFont
	default:
		return KindOther
	}
}
