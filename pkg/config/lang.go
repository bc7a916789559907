package config

import "fmt"

// langCodes maps ISO 639-1 and 639-2 codes to the ISO 639-3 codes used
// throughout a run. 639-3 codes map to themselves.
var langCodes = map[string]string{
	"ar": "ara", "ara": "ara",
	"de": "deu", "deu": "deu", "ger": "deu",
	"en": "eng", "eng": "eng",
	"es": "spa", "spa": "spa",
	"fa": "fas", "fas": "fas", "per": "fas",
	"fr": "fra", "fra": "fra", "fre": "fra",
	"ko": "kor", "kor": "kor",
	"ru": "rus", "rus": "rus",
	"zh": "zho", "zho": "zho", "chi": "zho",
}

// StandardizeLang converts a language code to ISO 639-3. Unknown codes
// are configuration errors.
func StandardizeLang(code string) (string, error) {
	if std, ok := langCodes[code]; ok {
		return std, nil
	}
	return "", NewConfigError(fmt.Sprintf("unknown language code '%s'", code), "", nil)
}
