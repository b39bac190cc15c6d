package identity

import (
	"bufio"
	"crypto/rand"
	"math/big"
	"os"
	"strings"
)

var firstNames = []string{
	"John", "Peter", "Mike", "James", "Robert",
	"David", "Chris", "Steve", "Brian", "Kevin",
}

var lastNames = []string{
	"Smith", "Jones", "Williams", "Brown", "Davis",
	"Miller", "Wilson", "Moore", "Taylor", "Martin",
}

// userAgents is a small pool of current desktop browser identities. An
// account keeps the agent it was assigned for its whole lifetime.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:126.0) Gecko/20100101 Firefox/126.0",
}

const passwordChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomFullName builds a plausible display name with a birth-year suffix,
// e.g. "JohnSmith1992".
func RandomFullName() string {
	year := 1985 + randInt(21)
	return firstNames[randInt(len(firstNames))] + lastNames[randInt(len(lastNames))] + itoa(year)
}

// RandomPassword returns a 12-character alphanumeric password.
func RandomPassword() string {
	b := make([]byte, 12)
	for i := range b {
		b[i] = passwordChars[randInt(len(passwordChars))]
	}
	return string(b)
}

// RandomUserAgent picks a browser identity for a new account.
func RandomUserAgent() string {
	return userAgents[randInt(len(userAgents))]
}

func randInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

func itoa(n int) string {
	return big.NewInt(int64(n)).String()
}

// ProxyRing cycles through a fixed proxy list, round-robin. An empty ring
// always yields "" (direct connection).
type ProxyRing struct {
	proxies []string
	next    int
}

func NewProxyRing(proxies []string) *ProxyRing {
	return &ProxyRing{proxies: proxies}
}

func (r *ProxyRing) Next() string {
	if len(r.proxies) == 0 {
		return ""
	}
	p := r.proxies[r.next%len(r.proxies)]
	r.next++
	return p
}

func (r *ProxyRing) Len() int {
	return len(r.proxies)
}

// LoadLines reads a line-per-entry input file (proxies, private keys),
// dropping blanks and surrounding whitespace. A missing file yields an empty
// list, not an error: both inputs are optional.
func LoadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
