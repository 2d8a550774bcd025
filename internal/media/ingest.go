package media

import (
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ItemFromDocument converts a dynamic catalog document into a typed Item.
// This is the only place untyped content maps are inspected; the result is
// validated once and treated as immutable afterwards.
func ItemFromDocument(doc map[string]any) (*Item, error) {
	var item Item
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &item,
		DecodeHook: secondsToDurationHook(),
	})
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(doc); err != nil {
		return nil, fmt.Errorf("decode item document: %w", err)
	}
	if err := validate.Struct(&item); err != nil {
		return nil, fmt.Errorf("validate item %q: %w", item.ID, err)
	}
	if err := checkChapterOrder(item.Chapters); err != nil {
		return nil, fmt.Errorf("validate item %q: %w", item.ID, err)
	}
	return &item, nil
}

// secondsToDurationHook converts numeric duration fields, which catalog
// documents carry as seconds, into time.Duration.
func secondsToDurationHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		default:
			return data, nil
		}
	}
}

// checkChapterOrder verifies chapter indexes are contiguous from zero;
// playback navigation arithmetic depends on it.
func checkChapterOrder(chapters []Chapter) error {
	for i, c := range chapters {
		if c.Index != i {
			return fmt.Errorf("chapter %q: index %d at position %d, want contiguous from 0", c.ID, c.Index, i)
		}
	}
	return nil
}
