// Package catalog holds the ordered table of voice commands.
//
// Catalog order is significant: when two commands match equally well the one
// declared first wins.
package catalog

import (
	"voice-command-service/internal/ports"
)

// Action is the zero-argument callable bound to a command.
type Action func() error

// Definition is the declarative form of a command, as read from a catalog file.
type Definition struct {
	Name        string   `yaml:"name" json:"name"`
	Patterns    []string `yaml:"patterns" json:"patterns"`
	Category    string   `yaml:"category" json:"category"`
	Description string   `yaml:"description" json:"description"`
	Response    string   `yaml:"response,omitempty" json:"response,omitempty"`
	Route       string   `yaml:"route" json:"route"`
}

// Command is a definition bound to an executable action.
type Command struct {
	Name        string
	Patterns    []string
	Category    string
	Description string
	// Response is spoken when the command is dispatched. Optional.
	Response string
	// Route is the navigation key the action targets. Informational.
	Route  string
	Action Action
}

// Definition returns the declarative form of the command.
func (c Command) Definition() Definition {
	return Definition{
		Name:        c.Name,
		Patterns:    append([]string(nil), c.Patterns...),
		Category:    c.Category,
		Description: c.Description,
		Response:    c.Response,
		Route:       c.Route,
	}
}

// Catalog is an immutable, ordered list of commands.
type Catalog struct {
	commands []Command
}

// New creates a catalog from commands. Commands and their pattern lists are
// copied, so later changes by the caller have no effect.
func New(commands []Command) *Catalog {
	c := &Catalog{commands: make([]Command, len(commands))}
	for i, cmd := range commands {
		cmd.Patterns = append([]string(nil), cmd.Patterns...)
		c.commands[i] = cmd
	}
	return c
}

// Bind creates a catalog whose actions navigate to each definition's route.
func Bind(defs []Definition, nav ports.NavigationService) *Catalog {
	commands := make([]Command, 0, len(defs))
	for _, d := range defs {
		route := d.Route
		commands = append(commands, Command{
			Name:        d.Name,
			Patterns:    d.Patterns,
			Category:    d.Category,
			Description: d.Description,
			Response:    d.Response,
			Route:       route,
			Action: func() error {
				return nav.GoTo(route)
			},
		})
	}
	return New(commands)
}

// Commands returns a copy of the commands in declaration order.
func (c *Catalog) Commands() []Command {
	out := make([]Command, len(c.commands))
	for i, cmd := range c.commands {
		cmd.Patterns = append([]string(nil), cmd.Patterns...)
		out[i] = cmd
	}
	return out
}

// Definitions returns the declarative form of every command, for help listings.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, len(c.commands))
	for i, cmd := range c.commands {
		out[i] = cmd.Definition()
	}
	return out
}

// Len returns the number of commands.
func (c *Catalog) Len() int {
	return len(c.commands)
}

// Lookup finds a command by name.
func (c *Catalog) Lookup(name string) (Command, bool) {
	for _, cmd := range c.commands {
		if cmd.Name == name {
			cmd.Patterns = append([]string(nil), cmd.Patterns...)
			return cmd, true
		}
	}
	return Command{}, false
}

// Categories returns the distinct categories in first-seen order.
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, cmd := range c.commands {
		if cmd.Category == "" || seen[cmd.Category] {
			continue
		}
		seen[cmd.Category] = true
		out = append(out, cmd.Category)
	}
	return out
}
