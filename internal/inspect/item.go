package inspect

import "time"

// Sticker is a single applied sticker, normalized from the GC's raw
// `sticker_id` field to `StickerID`.
type Sticker struct {
	StickerID int     `json:"stickerId"`
	Slot      int     `json:"slot,omitempty"`
	Wear      float64 `json:"wear,omitempty"`
}

// RawItemInfo is the GC's wire-shaped reply, prior to normalization.
// Field names mirror the upstream protocol's casing so a SessionClient
// implementation can populate it directly off the wire.
type RawItemInfo struct {
	ItemID    string
	PaintSeed *int // nil means "not set" -> normalizes to 0
	PaintWear float64
	Stickers  []RawSticker
}

// RawSticker is a single sticker as the GC reports it.
type RawSticker struct {
	StickerID int
	Slot      int
	Wear      float64
}

// ItemInfo is the normalized, caller-facing reply for an inspect request.
type ItemInfo struct {
	ItemID     string    `json:"itemId"`
	PaintSeed  int       `json:"paintseed"`
	FloatValue float64   `json:"floatValue"`
	Stickers   []Sticker `json:"stickers"`

	// Pass-through request fields.
	S string `json:"s"`
	A string `json:"a"`
	D string `json:"d"`
	M string `json:"m"`

	// Delay is the remaining busy-cooldown the bot will observe after
	// delivering this reply, computed as max(0, requestDelay - elapsed).
	Delay time.Duration `json:"delay"`
}

// Normalize converts a GC raw reply plus the originating link into the
// caller-facing ItemInfo shape (R1-R3 of the normalization laws):
// paintwear is renamed to floatValue, paintseed defaults to 0 when unset,
// and every sticker's sticker_id becomes stickerId.
func Normalize(raw RawItemInfo, link Link, delay time.Duration) ItemInfo {
	seed := 0
	if raw.PaintSeed != nil {
		seed = *raw.PaintSeed
	}

	stickers := make([]Sticker, 0, len(raw.Stickers))
	for _, rs := range raw.Stickers {
		stickers = append(stickers, Sticker{
			StickerID: rs.StickerID,
			Slot:      rs.Slot,
			Wear:      rs.Wear,
		})
	}

	if delay < 0 {
		delay = 0
	}

	return ItemInfo{
		ItemID:     raw.ItemID,
		PaintSeed:  seed,
		FloatValue: raw.PaintWear,
		Stickers:   stickers,
		S:          link.S,
		A:          link.A,
		D:          link.D,
		M:          link.M,
		Delay:      delay,
	}
}
