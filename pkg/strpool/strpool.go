// Package strpool interns string literals for the .data section.
package strpool

import "fmt"

// Pool keeps literals in creation order. Literals are never deduplicated:
// the same text entered twice gets two labels.
type Pool struct {
	items []string
}

func New() *Pool { return &Pool{} }

// Enter stores lit verbatim and returns its index.
func (p *Pool) Enter(lit string) int {
	p.items = append(p.items, lit)
	return len(p.items) - 1
}

func (p *Pool) Size() int           { return len(p.items) }
func (p *Pool) ItemAt(i int) string { return p.items[i] }

// Label is the data label of entry i.
func Label(i int) string { return fmt.Sprintf("Str%d", i) }
