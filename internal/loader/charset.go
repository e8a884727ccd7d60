package loader

import (
	"bytes"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// normalizeCharset returns the payload as UTF-8. A leading BOM is stripped;
// payloads that are not valid UTF-8 are decoded as windows-1251, which older
// vendor exports still use.
func normalizeCharset(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}

	decoded, err := charmap.Windows1251.NewDecoder().Bytes(data)
	if err != nil {
		return nil, eris.Wrap(err, "loader: decode windows-1251")
	}
	return decoded, nil
}
