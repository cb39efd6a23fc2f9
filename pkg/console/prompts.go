package console

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kitinfo/kitinfo/pkg/engine"
)

const (
	msgFieldsIntro    = "Please enter the specified parameter values."
	msgFieldsBlank    = "Leave any field you don't wish to specify/update blank."
	msgInvalidConfirm = "Invalid input. Proceeding as if \"Y\" was entered."
	msgInvalidFamily  = "Invalid input, skipping Font Family input."

	promptName        = "Name:"
	promptDomains     = "Domains (comma separated list):"
	promptFamilyCount = "Number of Font Families to add (enter 0 to skip):"
	promptFamilyID    = "Enter ID for Family #%d:"
)

var domainSeparator = regexp.MustCompile(`,\s*`)

// Choose shows labels as a menu and returns the zero-based index of the chosen
// entry. Enter picks the entry under the cursor, the first one unless moved;
// a typed number picks that entry. Anything else asks again.
func (c *Console) Choose(ctx context.Context, prompt string, labels []string) (int, error) {
	if len(labels) == 0 {
		return 0, engine.NewInternalError("menu has no entries", nil)
	}

	if c.tty == nil {
		c.println(c.titleColor.Sprint(prompt))
		for i, label := range labels {
			c.println(fmt.Sprintf("  %d) %s", i+1, label))
		}
	}

	for {
		final, err := c.run(ctx, newMenuModel(prompt, labels), fmt.Sprintf("Choose 1-%d [1]:", len(labels)))
		if err != nil {
			return 0, err
		}

		m, _ := final.(menuModel)
		switch m.outcome {
		case answered:
			return m.choice, nil
		case invalid:
			c.Warn(fmt.Sprintf("Please enter a number between 1 and %d.", len(labels)))
		default:
			return 0, engine.ErrInputClosed
		}
	}
}

// Confirm asks a yes/no question. Enter and unparseable answers count as yes.
func (c *Console) Confirm(ctx context.Context, prompt string) (bool, error) {
	answer, err := c.ask(ctx, prompt+" (Y/n)")
	if err != nil {
		return false, err
	}

	yes, err := parseYesNo(answer)
	if err != nil {
		c.println(msgInvalidConfirm)
		return true, nil
	}
	return yes, nil
}

// ask reads one line of free text.
func (c *Console) ask(ctx context.Context, prompt string) (string, error) {
	final, err := c.run(ctx, newInputModel(prompt), prompt)
	if err != nil {
		return "", err
	}

	m, _ := final.(inputModel)
	if m.outcome != answered {
		return "", engine.ErrInputClosed
	}
	return m.Value(), nil
}

func parseYesNo(answer string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "", "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		return false, engine.NewValidationError(fmt.Sprintf("%q is not yes or no", answer), nil)
	}
}

// CollectFields prompts for the kit name, domains and font family IDs.
// Blank answers are left out of the result.
func (c *Console) CollectFields(ctx context.Context) (engine.Fields, error) {
	c.println(msgFieldsIntro)
	c.println(msgFieldsBlank)

	fields := engine.Fields{}

	name, err := c.ask(ctx, promptName)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name != "" {
		fields[engine.FieldName] = []string{name}
	}

	domains, err := c.ask(ctx, promptDomains)
	if err != nil {
		return nil, err
	}
	if list := splitDomains(domains); len(list) > 0 {
		fields[engine.FieldDomains] = list
	}

	count, err := c.readFamilyCount(ctx)
	if err != nil {
		return nil, err
	}

	n := 0
	for i := 0; i < count; i++ {
		id, err := c.ask(ctx, fmt.Sprintf(promptFamilyID, i+1))
		if err != nil {
			return nil, err
		}
		if id = strings.TrimSpace(id); id != "" {
			fields[engine.FamilyKey(n)] = []string{id}
			n++
		}
	}

	return fields, nil
}

// readFamilyCount reads how many family IDs follow. Blank means none; an
// answer that is not a non-negative number skips family input.
func (c *Console) readFamilyCount(ctx context.Context) (int, error) {
	answer, err := c.ask(ctx, promptFamilyCount)
	if err != nil {
		return 0, err
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return 0, nil
	}

	count, err := strconv.Atoi(answer)
	if err != nil || count < 0 {
		c.println(msgInvalidFamily)
		return 0, nil
	}
	return count, nil
}

func splitDomains(input string) []string {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}

	var out []string
	for _, d := range domainSeparator.Split(input, -1) {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}
