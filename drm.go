package epubfile

import (
	"archive/zip"
	"encoding/xml"
	"strings"
)

const (
	// encryptionFilePath is the standard path for the encryption descriptor.
	encryptionFilePath = "META-INF/encryption.xml"

	// sinfFilePath indicates Apple FairPlay DRM.
	sinfFilePath = "META-INF/sinf.xml"
)

// Font obfuscation algorithm URIs. These do NOT constitute DRM; obfuscated
// fonts are still editable as opaque bytes.
var fontObfuscationAlgorithms = map[string]bool{
	"http://www.idpf.org/2008/embedding": true, // IDPF font obfuscation
	"http://ns.adobe.com/pdf/enc#RC":     true, // Adobe font obfuscation
}

// Known DRM namespace prefixes found in KeyInfo child elements or algorithm URIs.
var drmSignatures = []string{
	"http://ns.adobe.com/adept",      // Adobe ADEPT
	"http://readium.org/2014/01/lcp", // Readium LCP
}

type encryptionXML struct {
	XMLName       xml.Name        `xml:"encryption"`
	EncryptedData []encryptedData `xml:"EncryptedData"`
}

type encryptedData struct {
	Method  encryptionMethod `xml:"EncryptionMethod"`
	KeyInfo encryptionKey    `xml:"KeyInfo"`
}

type encryptionMethod struct {
	Algorithm string `xml:"Algorithm,attr"`
}

type encryptionKey struct {
	InnerXML string `xml:",innerxml"`
}

// checkDRM parses META-INF/encryption.xml (if present) and determines whether
// the package is DRM-protected or merely uses font obfuscation. A protected
// package cannot be edited meaningfully, so it refuses to open.
//
// Returns:
//   - (false, nil)             – no encryption.xml found or it's empty
//   - (true,  nil)             – only font obfuscation entries detected
//   - (false, ErrDRMProtected) – real DRM encryption detected
func checkDRM(zr *zip.Reader) (fontObfuscation bool, err error) {
	// Apple FairPlay indicator first.
	if findFileInsensitive(zr, sinfFilePath) != nil {
		return false, ErrDRMProtected
	}

	f := findFileInsensitive(zr, encryptionFilePath)
	if f == nil {
		return false, nil
	}

	data, err := readZipFile(f)
	if err != nil {
		return false, err
	}

	var enc encryptionXML
	if err := xml.Unmarshal(stripBOM(data), &enc); err != nil {
		// Unparseable encryption descriptor; treat conservatively as DRM.
		return false, ErrDRMProtected
	}

	for _, ed := range enc.EncryptedData {
		if fontObfuscationAlgorithms[ed.Method.Algorithm] {
			fontObfuscation = true
			continue
		}
		if isDRMSignature(ed.Method.Algorithm) || isDRMSignature(ed.KeyInfo.InnerXML) {
			return false, ErrDRMProtected
		}
		// Any entry that is not font obfuscation is treated as DRM even when
		// the signature is not recognised.
		return false, ErrDRMProtected
	}

	return fontObfuscation, nil
}

// isDRMSignature checks whether s contains any known DRM namespace or identifier.
func isDRMSignature(s string) bool {
	for _, sig := range drmSignatures {
		if strings.Contains(s, sig) {
			return true
		}
	}
	return false
}
