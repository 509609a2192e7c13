package main

import (
	"testing"

	_ "github.com/visadesk/visadesk/internal/testing/guard"
)

func TestMainSkipsInTestMode(t *testing.T) {
	main()
}
