package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "auth":
		handleAuth(args)
	case "book":
		handleBook(args)
	case "member":
		handleMember(args)
	case "loan":
		handleLoan(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: circctl auth <register|login|logout|who>")
		return
	}

	switch args[0] {
	case "register":
		registerUser(args[1:])
	case "login":
		loginUser(args[1:])
	case "logout":
		logoutUser()
	case "who":
		whoAmI()
	default:
		fmt.Printf("unknown auth command: %s\n", args[0])
	}
}

func handleBook(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: circctl book <list|available|search|add|remove>")
		return
	}

	switch args[0] {
	case "list":
		listBooks()
	case "available":
		availableBooks()
	case "search":
		searchBooks(args[1:])
	case "add":
		addBook(args[1:])
	case "remove":
		removeBook(args[1:])
	default:
		fmt.Printf("unknown book command: %s\n", args[0])
	}
}

func handleMember(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: circctl member <list|add|loans>")
		return
	}

	switch args[0] {
	case "list":
		listMembers()
	case "add":
		addMember(args[1:])
	case "loans":
		memberLoans(args[1:])
	default:
		fmt.Printf("unknown member command: %s\n", args[0])
	}
}

func handleLoan(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: circctl loan <create|return|active|overdue>")
		return
	}

	switch args[0] {
	case "create":
		createLoan(args[1:])
	case "return":
		returnLoan(args[1:])
	case "active":
		listLoans("/loans/active")
	case "overdue":
		listLoans("/loans/overdue")
	default:
		fmt.Printf("unknown loan command: %s\n", args[0])
	}
}

// Auth commands

func registerUser(args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "staff email")
	name := fs.String("name", "", "display name")
	password := fs.String("password", "", "password")
	role := fs.String("role", "", "role: librarian or admin (optional)")

	fs.Parse(args)

	if *email == "" || *name == "" || *password == "" {
		fmt.Println("Error: email, name, and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{
		"email":    *email,
		"name":     *name,
		"password": *password,
	}
	if *role != "" {
		payload["role"] = *role
	}

	result, status, err := post("/register", payload)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == http.StatusCreated {
		fmt.Printf("✓ Registered: %s\n", *email)
		if token, ok := result["token"].(string); ok {
			saveToken(token)
		}
	} else {
		fmt.Printf("✗ Registration failed: %v\n", result)
	}
}

func loginUser(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "staff email")
	password := fs.String("password", "", "password")

	fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Println("Error: email and password are required")
		fs.PrintDefaults()
		return
	}

	result, status, err := post("/login", map[string]string{"email": *email, "password": *password})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == http.StatusOK {
		if token, ok := result["token"].(string); ok {
			saveToken(token)
			fmt.Printf("✓ Logged in as: %s\n", *email)
		}
	} else {
		fmt.Printf("✗ Login failed: %v\n", result)
	}
}

func logoutUser() {
	os.Remove(tokenFile())
	fmt.Println("✓ Logged out")
}

func whoAmI() {
	token := loadToken()
	if token == "" {
		fmt.Println("Not logged in")
		return
	}
	fmt.Printf("✓ Logged in (token: %s...)\n", token[:20])
}

// Book commands

func listBooks() {
	printBooks(getList("/books"))
}

func availableBooks() {
	printBooks(getList("/books/available"))
}

func searchBooks(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: circctl book search <title>")
		return
	}
	printBooks(getList("/books?title=" + url.QueryEscape(args[0])))
}

func printBooks(books []map[string]interface{}) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tGENRE\tAVAILABLE")
	for _, b := range books {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", b["id"], b["title"], b["author"], b["genre"], b["available"])
	}
	w.Flush()
}

func addBook(args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	title := fs.String("title", "", "book title")
	author := fs.String("author", "", "book author")
	genre := fs.String("genre", "", "book genre")

	fs.Parse(args)

	if *title == "" || *author == "" || *genre == "" {
		fmt.Println("Error: title, author, and genre are required")
		fs.PrintDefaults()
		return
	}

	result, status, err := post("/books", map[string]string{
		"title":  *title,
		"author": *author,
		"genre":  *genre,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == http.StatusCreated {
		fmt.Printf("✓ Book added: %v (id %v)\n", result["title"], result["id"])
	} else {
		fmt.Printf("✗ Add failed: %v\n", result)
	}
}

func removeBook(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: circctl book remove <book-id>")
		return
	}

	req, _ := http.NewRequest(http.MethodDelete, getAPIURL()+"/books/"+args[0], nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
		fmt.Printf("✓ Book %s removed\n", args[0])
	} else {
		fmt.Printf("✗ Remove failed (status %d)\n", resp.StatusCode)
	}
}

// Member commands

func listMembers() {
	members := getList("/members")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tPHONE")
	for _, m := range members {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", m["id"], m["name"], m["email"], m["phone"])
	}
	w.Flush()
}

func addMember(args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	name := fs.String("name", "", "member name")
	address := fs.String("address", "", "postal address")
	email := fs.String("email", "", "email address")
	phone := fs.String("phone", "", "phone number")

	fs.Parse(args)

	if *name == "" || *email == "" {
		fmt.Println("Error: name and email are required")
		fs.PrintDefaults()
		return
	}

	result, status, err := post("/members", map[string]string{
		"name":    *name,
		"address": *address,
		"email":   *email,
		"phone":   *phone,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == http.StatusCreated {
		fmt.Printf("✓ Member added: %v (id %v)\n", result["name"], result["id"])
	} else {
		fmt.Printf("✗ Add failed: %v\n", result)
	}
}

func memberLoans(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: circctl member loans <member-id>")
		return
	}
	listLoans("/members/" + args[0] + "/loans")
}

// Loan commands

func createLoan(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	bookID := fs.Int64("book", 0, "book id")
	memberID := fs.Int64("member", 0, "member id")

	fs.Parse(args)

	if *bookID == 0 || *memberID == 0 {
		fmt.Println("Error: book and member are required")
		fs.PrintDefaults()
		return
	}

	result, status, err := post("/loans", map[string]int64{
		"bookId":   *bookID,
		"memberId": *memberID,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == http.StatusCreated {
		fmt.Printf("✓ Loan %v created: book %v -> member %v\n", result["id"], result["bookId"], result["memberId"])
	} else {
		fmt.Printf("✗ Loan failed: %v\n", result)
	}
}

func returnLoan(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: circctl loan return <loan-id>")
		return
	}

	req, _ := http.NewRequest(http.MethodPut, getAPIURL()+"/loans/"+args[0]+"/return", nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == http.StatusOK {
		fmt.Printf("✓ Loan %s returned at %v\n", args[0], result["returnDate"])
	} else {
		fmt.Printf("✗ Return failed: %v\n", result)
	}
}

func listLoans(path string) {
	loans := getList(path)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tBOOK\tMEMBER\tLOANED\tRETURNED")
	for _, l := range loans {
		returned := l["returnDate"]
		if returned == nil {
			returned = "-"
		}
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", l["id"], l["bookId"], l["memberId"], l["loanDate"], returned)
	}
	w.Flush()
}

// Helper functions

func getAPIURL() string {
	if url := os.Getenv("CIRCULATION_API"); url != "" {
		return url
	}
	return "http://localhost:8080/api"
}

func post(path string, payload interface{}) (map[string]interface{}, int, error) {
	data, _ := json.Marshal(payload)
	req, _ := http.NewRequest(http.MethodPost, getAPIURL()+path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	return result, resp.StatusCode, nil
}

func getList(path string) []map[string]interface{} {
	req, _ := http.NewRequest(http.MethodGet, getAPIURL()+path, nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return nil
	}
	defer resp.Body.Close()

	var items []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&items)
	return items
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return home + "/.circulation/token"
}

func saveToken(token string) error {
	home, _ := os.UserHomeDir()
	os.MkdirAll(home+"/.circulation", 0700)
	return os.WriteFile(tokenFile(), []byte(token), 0600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return string(data)
}

func addAuthHeader(req *http.Request) {
	token := loadToken()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func printUsage() {
	fmt.Print(`Circulation CLI

Usage:
  circctl <command> [options]

Commands:
  auth    Staff authentication (register, login, logout, who)
  book    Catalog operations (list, available, search, add, remove)
  member  Member operations (list, add, loans)
  loan    Circulation operations (create, return, active, overdue)
  help    Show this help message

Environment Variables:
  CIRCULATION_API    API endpoint (default: http://localhost:8080/api)

Examples:
  circctl auth login -email staff@library.org -password secret123
  circctl book search "dune"
  circctl loan create -book 3 -member 7
  circctl loan return 12
`)
}
