package models

import (
	"fmt"
	"math/rand"
)

// Color is a display hint for viewers. The pipeline never interprets it.
type Color struct {
	R uint8 `json:"r" msgpack:"r"`
	G uint8 `json:"g" msgpack:"g"`
	B uint8 `json:"b" msgpack:"b"`
}

var (
	DefaultColor = Color{0, 0, 0}

	ColorBlack      = Color{0, 0, 0}
	ColorNavy       = Color{0, 0, 128}
	ColorDarkGreen  = Color{0, 100, 0}
	ColorTeal       = Color{0, 128, 128}
	ColorMaroon     = Color{128, 0, 0}
	ColorPurple     = Color{128, 0, 128}
	ColorOlive      = Color{128, 128, 0}
	ColorGray       = Color{128, 128, 128}
	ColorBlue       = Color{0, 0, 255}
	ColorGreen      = Color{0, 128, 0}
	ColorRed        = Color{255, 0, 0}
	ColorDarkOrange = Color{255, 140, 0}
)

var palette = []Color{
	ColorBlack, ColorNavy, ColorDarkGreen, ColorTeal,
	ColorMaroon, ColorPurple, ColorOlive, ColorGray,
	ColorBlue, ColorGreen, ColorRed, ColorDarkOrange,
}

// PaletteSize is the number of colors addressable by ColorByNumber.
func PaletteSize() int {
	return len(palette)
}

// ColorByNumber returns the palette entry n, wrapping around the palette.
func ColorByNumber(n int) Color {
	return palette[((n%len(palette))+len(palette))%len(palette)]
}

func RandomColor() Color {
	return palette[rand.Intn(len(palette))]
}

func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
