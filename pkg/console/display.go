package console

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kitinfo/kitinfo/pkg/engine"
)

const (
	msgDeleted = "Kit successfully deleted!"
	msgError   = "An error occurred!"
)

var (
	hintBadRequest = []string{
		"The API indicated that the request was bad.",
		"It's likely because the entered Font Family ID was invalid,",
		"or that you've reached your maximum Kit limit.",
	}
	hintNotFound = []string{
		"The API indicated that it couldn't find the resource.",
		"Make sure that the the Kit wasn't deleted while using this application.",
	}
)

// kitDocument mirrors the API response so the display matches what the API returned.
type kitDocument struct {
	Kit *engine.Kit `json:"kit" yaml:"kit"`
}

// ShowResource pretty-prints a kit in the configured format.
func (c *Console) ShowResource(kit *engine.Kit) {
	if kit == nil {
		return
	}

	doc := kitDocument{Kit: kit}
	var (
		data []byte
		err  error
	)
	if c.format == FormatYAML {
		data, err = yaml.Marshal(doc)
	} else {
		data, err = json.MarshalIndent(doc, "", "  ")
	}
	if err != nil {
		c.ShowError(err.Error())
		return
	}

	c.println(strings.TrimRight(string(data), "\n"))
}

// ShowDeleted confirms a deletion.
func (c *Console) ShowDeleted() {
	c.println(c.okColor.Sprint(msgDeleted))
}

// ShowError explains a failed request. Bad request and not found responses
// get a hint about the likely cause; anything else is shown as is.
func (c *Console) ShowError(message string) {
	c.println(c.errorColor.Sprint(msgError))

	for _, line := range errorHint(message) {
		c.println(line)
	}
}

func errorHint(message string) []string {
	switch {
	case strings.Contains(message, "400"):
		return hintBadRequest
	case strings.Contains(message, "404"):
		return hintNotFound
	case message == "":
		return nil
	default:
		return []string{message}
	}
}
