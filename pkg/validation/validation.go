package validation

import (
	"fmt"
	"net/url"
	"regexp"
)

const (
	MinWorkers = 1
	MaxWorkers = 20

	MinImageCount     = 1
	MaxImageCount     = 50
	DefaultImageCount = 3
)

var breedPattern = regexp.MustCompile(`^[a-z]+(-[a-z]+)?$`)

func ValidateWorkerCount(workers int) error {
	if workers < MinWorkers || workers > MaxWorkers {
		return fmt.Errorf("worker count must be between %d and %d, got %d", MinWorkers, MaxWorkers, workers)
	}
	return nil
}

func ValidateUserID(id int) error {
	if id <= 0 {
		return fmt.Errorf("user ID must be a positive integer, got %d", id)
	}
	return nil
}

func ValidateNonEmptyString(fieldName, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

// ValidateBreed accepts dog.ceo breed paths such as "hound" or "hound-afghan".
func ValidateBreed(breed string) error {
	if !breedPattern.MatchString(breed) {
		return fmt.Errorf("invalid breed: %q", breed)
	}
	return nil
}

func ValidateImageCount(count int) error {
	if count < MinImageCount || count > MaxImageCount {
		return fmt.Errorf("image count must be between %d and %d, got %d", MinImageCount, MaxImageCount, count)
	}
	return nil
}

func ValidateImageURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid image URL: %q", raw)
	}
	return nil
}
