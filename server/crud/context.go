package crud

import (
	"crudconsole/server/auth"
	"crudconsole/server/grid"
)

// Context is the navigation state of one console request. It is a value:
// WithLevel and Pop return new contexts and never change the receiver.
type Context struct {
	root      string
	className string
	levels    []grid.CrudLevel
	user      *auth.User
}

func NewContext(className string, user *auth.User) Context {
	return Context{root: className, className: className, user: user}
}

func (c Context) ClassName() string {
	return c.className
}

func (c Context) User() *auth.User {
	return c.user
}

func (c Context) Language() string {
	if c.user == nil {
		return ""
	}
	return c.user.Language
}

func (c Context) Levels() []grid.CrudLevel {
	return append([]grid.CrudLevel{}, c.levels...)
}

func (c Context) Depth() int {
	return len(c.levels)
}

// WithLevel drills into a linked grid; the level's class becomes the
// context class when it is set.
func (c Context) WithLevel(level grid.CrudLevel) Context {
	levels := make([]grid.CrudLevel, len(c.levels), len(c.levels)+1)
	copy(levels, c.levels)
	next := Context{root: c.root, className: c.className, levels: append(levels, level), user: c.user}
	if level.ClassName != "" {
		next.className = level.ClassName
	}
	return next
}

// Pop goes back one level. The root context pops to itself.
func (c Context) Pop() Context {
	if len(c.levels) == 0 {
		return c
	}
	next := Context{root: c.root, className: c.root, levels: c.levels[:len(c.levels)-1 : len(c.levels)-1], user: c.user}
	for _, level := range next.levels {
		if level.ClassName != "" {
			next.className = level.ClassName
		}
	}
	return next
}

// Current is the innermost level or nil at the root.
func (c Context) Current() *grid.CrudLevel {
	if len(c.levels) == 0 {
		return nil
	}
	level := c.levels[len(c.levels)-1]
	return &level
}
