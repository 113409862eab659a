// Package console is the interactive menu shared by the direct and the
// remote todo clients.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/s1natex/todo-api-GO/internal/tasks"
)

// Backend is where the menu reads and writes todo items.
type Backend interface {
	List(ctx context.Context) ([]tasks.Task, error)
	Get(ctx context.Context, id int64) (tasks.Task, error)
	Create(ctx context.Context, description string) (tasks.Task, error)
	Update(ctx context.Context, id int64, description string) error
	SetComplete(ctx context.Context, id int64, isComplete bool) error
	Delete(ctx context.Context, id int64) error
}

type Console struct {
	backend Backend
	title   string
	in      *bufio.Scanner
	out     io.Writer
	now     func() time.Time
}

func New(backend Backend, title string, in io.Reader, out io.Writer) *Console {
	return &Console{
		backend: backend,
		title:   title,
		in:      bufio.NewScanner(in),
		out:     out,
		now:     time.Now,
	}
}

// Run shows the menu until the user quits, input ends, or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		op, ok := c.menu()
		if !ok || op == "q" {
			return nil
		}
		if !c.dispatch(ctx, op) {
			return nil
		}
	}
}

// menu repeats until a valid choice is read.
func (c *Console) menu() (string, bool) {
	for {
		c.println("Welcome TodoList " + c.title)
		c.println("1. Add Todo item to List")
		c.println("2. Read Todo items")
		c.println("3. Update Todo item")
		c.println("4. Delete Todo item from List")
		c.println("5. Mark Todo item as Complete/Incomplete")
		c.println("q - to quit")

		line, ok := c.readLine()
		if !ok {
			return "", false
		}
		switch line {
		case "1", "2", "3", "4", "5", "q":
			return line, true
		}
	}
}

// dispatch runs one menu operation. It returns false when input ran out.
func (c *Console) dispatch(ctx context.Context, op string) bool {
	switch op {
	case "1":
		c.println("Enter task description:")
		desc, ok := c.readLine()
		if !ok {
			return false
		}
		if _, err := c.backend.Create(ctx, desc); err != nil {
			c.printErr("creating task", err)
			return true
		}
		c.println("Task added successfully!")

	case "2":
		c.list(ctx)

	case "3":
		id, ok, more := c.readID("Enter task ID to update:")
		if !ok {
			return more
		}
		c.println("Enter new task description:")
		desc, more := c.readLine()
		if !more {
			return false
		}
		if err := c.backend.Update(ctx, id, desc); err != nil {
			c.printIDErr(id, "updating task", err)
			return true
		}
		c.println("Task updated successfully!")

	case "4":
		id, ok, more := c.readID("Enter task ID to delete:")
		if !ok {
			return more
		}
		if err := c.backend.Delete(ctx, id); err != nil {
			c.printIDErr(id, "deleting task", err)
			return true
		}
		c.println("Task deleted successfully!")

	case "5":
		id, ok, more := c.readID("Enter task ID to mark complete/incomplete:")
		if !ok {
			return more
		}
		current, err := c.backend.Get(ctx, id)
		if err != nil {
			c.printIDErr(id, "reading task", err)
			return true
		}
		c.println("Current status: " + status(current.IsComplete))
		c.println("Mark as (c)omplete or (p)ending?")
		choice, more := c.readLine()
		if !more {
			return false
		}
		done := strings.EqualFold(choice, "c")
		if err := c.backend.SetComplete(ctx, id, done); err != nil {
			c.printIDErr(id, "updating task", err)
			return true
		}
		c.println("Task marked as " + status(done) + "!")
	}
	return true
}

func (c *Console) list(ctx context.Context) {
	items, err := c.backend.List(ctx)
	if err != nil {
		c.printErr("retrieving tasks", err)
		return
	}
	if len(items) == 0 {
		c.println("No todo items found.")
		return
	}
	now := c.now()
	for _, t := range items {
		line := fmt.Sprintf("ID:%d, Task:%s, Status:%s, Created:%s",
			t.ID, t.Description, status(t.IsComplete), humanize.RelTime(t.CreatedAt, now, "ago", "from now"))
		if !t.ModifiedAt.IsZero() {
			line += ", Modified:" + humanize.RelTime(t.ModifiedAt, now, "ago", "from now")
		}
		c.println(line)
	}
}

// readID prompts for an id. ok is false when no valid id was read; more is
// false when input ended.
func (c *Console) readID(prompt string) (id int64, ok, more bool) {
	c.println(prompt)
	line, more := c.readLine()
	if !more {
		return 0, false, false
	}
	id, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		c.println("Invalid ID entered.")
		return 0, false, true
	}
	return id, true, true
}

func (c *Console) readLine() (string, bool) {
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

func (c *Console) printIDErr(id int64, action string, err error) {
	if errors.Is(err, tasks.ErrNotFound) {
		c.println(fmt.Sprintf("Task with ID %d not found.", id))
		return
	}
	c.printErr(action, err)
}

func (c *Console) printErr(action string, err error) {
	c.println(fmt.Sprintf("Error %s: %v", action, err))
}

func (c *Console) println(s string) {
	_, _ = fmt.Fprintln(c.out, s)
}

func status(done bool) string {
	if done {
		return "Complete"
	}
	return "Pending"
}
