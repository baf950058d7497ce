// catctl is the interactive command-line client for catalogd. It issues
// calls over one TCP connection and prints owner notifications as they
// arrive on that same connection.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ybecker/catalogd/pkg/client"
	"github.com/ybecker/catalogd/pkg/notify"
)

const usage = `Commands:
  register <user> <password>          reserve a username
  login <user> <password>             start a session on this connection
  logout                              end the current session
  list                                list all catalog records
  open <filename>                     fetch one record
  upload <filename> <size> <RO|RW>    add a record owned by you
  delete <filename>                   remove a record
  update <filename> <size>            change a record's size
  help                                show this help
  quit                                exit`

func main() {
	addr := flag.String("addr", "localhost:1099", "catalogd address")
	flag.Parse()

	c, err := client.Dial(*addr, printNotification)
	if err != nil {
		fmt.Fprintf(os.Stderr, "catctl: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	fmt.Printf("Connected to %s. Type 'help' for commands.\n", *addr)

	var token uint64
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			return
		case "help":
			fmt.Println(usage)
		default:
			token = runCommand(c, token, fields)
		}
	}
}

// runCommand executes one command and returns the session token, which only
// login and logout change.
func runCommand(c *client.Client, token uint64, fields []string) uint64 {
	switch fields[0] {
	case "register":
		if !wantArgs(fields, 2) {
			return token
		}
		ok, err := c.Register(fields[1], fields[2])
		if err != nil {
			fail(err)
		} else if ok {
			fmt.Println("Registered.")
		} else {
			fmt.Println("Username already taken.")
		}

	case "login":
		if !wantArgs(fields, 2) {
			return token
		}
		newToken, err := c.Login(fields[1], fields[2])
		if err != nil {
			fail(err)
		} else if newToken == 0 {
			fmt.Println("Login failed.")
		} else {
			fmt.Println("Logged in.")
			return newToken
		}

	case "logout":
		if err := c.Logout(token); err != nil {
			fail(err)
		} else {
			fmt.Println("Logged out.")
			return 0
		}

	case "list":
		records, err := c.List()
		if err != nil {
			fail(err)
			return token
		}
		if len(records) == 0 {
			fmt.Println("Catalog is empty.")
			return token
		}
		for _, r := range records {
			fmt.Printf("%-32s %10d  %-4s %s\n", r.Filename, r.Size, r.Permission, r.Owner)
		}

	case "open":
		if !wantArgs(fields, 1) {
			return token
		}
		record, err := c.Open(fields[1], token)
		if err != nil {
			fail(err)
		} else if record == nil {
			fmt.Println("Not found.")
		} else {
			fmt.Printf("%s: size=%d owner=%s permission=%s\n",
				record.Filename, record.Size, record.Owner, record.Permission)
		}

	case "upload":
		if !wantArgs(fields, 3) {
			return token
		}
		size, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			fmt.Println("size must be a number")
			return token
		}
		if err := c.Upload(token, fields[1], size, strings.ToUpper(fields[3])); err != nil {
			fail(err)
		} else {
			fmt.Println("Uploaded.")
		}

	case "delete":
		if !wantArgs(fields, 1) {
			return token
		}
		if err := c.Delete(fields[1], token); err != nil {
			fail(err)
		} else {
			fmt.Println("Done.")
		}

	case "update":
		if !wantArgs(fields, 2) {
			return token
		}
		size, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			fmt.Println("size must be a number")
			return token
		}
		if err := c.Update(fields[1], size, token); err != nil {
			fail(err)
		} else {
			fmt.Println("Done.")
		}

	default:
		fmt.Printf("Unknown command %q. Type 'help' for commands.\n", fields[0])
	}
	return token
}

// printNotification runs on the client's reader goroutine.
func printNotification(event notify.Event) {
	var verb string
	switch event.Kind {
	case notify.KindOpened:
		verb = "opened"
	case notify.KindDeleted:
		verb = "deleted"
	case notify.KindUpdated:
		verb = "updated"
	default:
		verb = "touched"
	}
	fmt.Printf("\n*** %s has %s one of your files.\n> ", event.Actor, verb)
}

func wantArgs(fields []string, n int) bool {
	if len(fields) != n+1 {
		fmt.Printf("usage error: %s takes %d argument(s)\n", fields[0], n)
		return false
	}
	return true
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}
