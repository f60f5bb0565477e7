package utils

import (
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"
)

//InSlice reports whether given string appears in given slice, ignoring case
func InSlice(lookingFor string, slice []string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, lookingFor) {
			return true
		}
	}

	return false
}

//ListDir returns the sorted names of the entries in given directory
func ListDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("ListDir: Could not read '%s', got '%v'", path, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	return names, nil
}

//ParseSize parses a "width,height" string, as used by the configuration file
func ParseSize(s string) (image.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 {
		return image.Point{}, fmt.Errorf("ParseSize: expected 'width,height', got '%s'", s)
	}

	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return image.Point{}, fmt.Errorf("ParseSize: bad width in '%s', got '%v'", s, err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return image.Point{}, fmt.Errorf("ParseSize: bad height in '%s', got '%v'", s, err)
	}

	if w <= 0 || h <= 0 {
		return image.Point{}, fmt.Errorf("ParseSize: size must be positive, got '%s'", s)
	}

	return image.Pt(w, h), nil
}
