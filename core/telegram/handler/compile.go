package handler

import "sort"

// Predicate decides whether a handler may run for ev.
type Predicate func(bot Bot, ev *Event) bool

// Gate is a named predicate. Gates with the same name override each other
// when bot-level and handler-level sets are merged.
type Gate struct {
	Name  string
	Allow Predicate
}

// NewGate returns a gate named name.
func NewGate(name string, allow Predicate) Gate {
	return Gate{Name: name, Allow: allow}
}

// Invert returns a gate with the same name that passes when g fails.
func (g Gate) Invert() Gate {
	allow := g.Allow
	return Gate{Name: g.Name, Allow: func(bot Bot, ev *Event) bool { return !allow(bot, ev) }}
}

// Cancel returns a gate with the same name that always passes. Declaring it
// on a handler lifts the bot-level gate of that name.
func (g Gate) Cancel() Gate {
	return Gate{Name: g.Name, Allow: func(Bot, *Event) bool { return true }}
}

// Transform enriches an event before it reaches the handler body.
type Transform struct {
	Name  string
	Apply func(bot Bot, ev *Event) (*Event, error)
}

// Target is a handler body.
type Target func(ev *Event) error

// Pipeline is the gates and transforms declared at one level.
type Pipeline struct {
	Gates      []Gate
	Transforms []Transform
}

// Compiled runs gates, transforms and the body for one raw event. ran reports
// whether the body was reached.
type Compiled func(ev *Event) (ran bool, err error)

// MergeGates merges bot-level and handler-level gates by name, handler-level
// entries winning, and returns them sorted by name.
func MergeGates(botLevel, handlerLevel []Gate) []Gate {
	byName := make(map[string]Gate, len(botLevel)+len(handlerLevel))
	for _, g := range botLevel {
		byName[g.Name] = g
	}
	for _, g := range handlerLevel {
		byName[g.Name] = g
	}
	out := make([]Gate, 0, len(byName))
	for _, g := range byName {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ChainTransforms puts bot-level transforms in front of handler-level ones.
func ChainTransforms(botLevel, handlerLevel []Transform) []Transform {
	out := make([]Transform, 0, len(botLevel)+len(handlerLevel))
	out = append(out, botLevel...)
	return append(out, handlerLevel...)
}

// Compile builds the closure for one handler. Gates see the raw event; the
// first transform receives the raw event, each next one the previous output,
// and target the final output.
func Compile(bot Bot, botLevel, handlerLevel Pipeline, target Target) Compiled {
	gates := MergeGates(botLevel.Gates, handlerLevel.Gates)
	transforms := ChainTransforms(botLevel.Transforms, handlerLevel.Transforms)

	return func(ev *Event) (bool, error) {
		for _, g := range gates {
			if !g.Allow(bot, ev) {
				return false, nil
			}
		}
		cur := ev
		for _, t := range transforms {
			next, err := t.Apply(bot, cur)
			if err != nil {
				return false, err
			}
			if next != nil {
				cur = next
			}
		}
		return true, target(cur)
	}
}
