//go:build !gosseract

package ocr

import "errors"

func newGosseractEngine(Config) (engine, error) {
	return nil, errors.New("ocr engine gosseract: binary built without the gosseract build tag")
}
