// Package spider talks to the external crawl service: a minimal RESP
// client that LPUSHes task payloads onto a Redis list (no general-purpose
// Redis client — the protocol surface used is AUTH/SELECT/LPUSH only,
// ported from original_source/infrastructures/spider/redis_gateway.py),
// and an HTTP callback receiver that the spider calls back into.
package spider

import (
	"bufio"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// connInfo is the parsed form of SPIDER_REDIS_URL.
type connInfo struct {
	host            string
	port            int
	db              int
	username        string
	password        string
	timeoutSeconds  float64
}

func parseRedisURL(redisURL string, timeoutSeconds float64) (connInfo, error) {
	u, err := url.Parse(redisURL)
	if err != nil {
		return connInfo{}, fmt.Errorf("spider: parse SPIDER_REDIS_URL: %w", err)
	}
	if u.Scheme != "redis" {
		return connInfo{}, fmt.Errorf("spider: SPIDER_REDIS_URL must start with redis://")
	}

	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := 6379
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return connInfo{}, fmt.Errorf("spider: invalid port in SPIDER_REDIS_URL: %w", err)
		}
	}

	db := 0
	if path := trimLeadingSlash(u.Path); path != "" {
		db, err = strconv.Atoi(path)
		if err != nil {
			return connInfo{}, fmt.Errorf("spider: invalid db index in SPIDER_REDIS_URL: %w", err)
		}
	}

	var username, password string
	if u.User != nil {
		username = u.User.Username()
		password, _ = u.User.Password()
	}

	return connInfo{host: host, port: port, db: db, username: username, password: password, timeoutSeconds: timeoutSeconds}, nil
}

func trimLeadingSlash(s string) string {
	if len(s) > 0 && s[0] == '/' {
		return s[1:]
	}
	return s
}

// Gateway pushes a JSON task payload onto a Redis list using the minimal
// RESP wire protocol over a plain TCP connection, dialed fresh per push.
type Gateway struct {
	info    connInfo
	listKey string
}

func NewGateway(redisURL, listKey string, timeoutSeconds float64) (*Gateway, error) {
	info, err := parseRedisURL(redisURL, timeoutSeconds)
	if err != nil {
		return nil, err
	}
	return &Gateway{info: info, listKey: listKey}, nil
}

// LPushJSON pushes payloadJSON onto the configured list and returns the
// list's new length.
func (g *Gateway) LPushJSON(payloadJSON string) (int64, error) {
	addr := net.JoinHostPort(g.info.host, strconv.Itoa(g.info.port))
	timeout := time.Duration(g.info.timeoutSeconds * float64(time.Second))

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return 0, fmt.Errorf("spider: dial %s: %w", addr, err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return 0, fmt.Errorf("spider: set deadline: %w", err)
	}
	r := bufio.NewReader(conn)

	if g.info.password != "" {
		var cmd []string
		if g.info.username != "" && g.info.username != "default" {
			cmd = []string{"AUTH", g.info.username, g.info.password}
		} else {
			cmd = []string{"AUTH", g.info.password}
		}
		if _, err := conn.Write(respArray(cmd)); err != nil {
			return 0, fmt.Errorf("spider: send AUTH: %w", err)
		}
		if err := expectOK(r); err != nil {
			return 0, fmt.Errorf("spider: AUTH failed: %w", err)
		}
	}

	if g.info.db != 0 {
		if _, err := conn.Write(respArray([]string{"SELECT", strconv.Itoa(g.info.db)})); err != nil {
			return 0, fmt.Errorf("spider: send SELECT: %w", err)
		}
		if err := expectOK(r); err != nil {
			return 0, fmt.Errorf("spider: SELECT failed: %w", err)
		}
	}

	if _, err := conn.Write(respArray([]string{"LPUSH", g.listKey, payloadJSON})); err != nil {
		return 0, fmt.Errorf("spider: send LPUSH: %w", err)
	}
	n, err := readInt(r)
	if err != nil {
		return 0, fmt.Errorf("spider: LPUSH failed: %w", err)
	}
	return n, nil
}

func respBulk(s string) []byte {
	return []byte(fmt.Sprintf("$%d\r\n%s\r\n", len(s), s))
}

func respArray(items []string) []byte {
	out := []byte(fmt.Sprintf("*%d\r\n", len(items)))
	for _, it := range items {
		out = append(out, respBulk(it)...)
	}
	return out
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("spider: redis connection closed: %w", err)
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line, nil
}

func expectOK(r *bufio.Reader) error {
	line, err := readLine(r)
	if err != nil {
		return err
	}
	if len(line) == 0 {
		return fmt.Errorf("spider: empty redis reply")
	}
	if line[0] == '+' {
		return nil
	}
	return fmt.Errorf("spider: redis error reply: %s", line)
}

func readInt(r *bufio.Reader) (int64, error) {
	line, err := readLine(r)
	if err != nil {
		return 0, err
	}
	if len(line) == 0 {
		return 0, fmt.Errorf("spider: empty redis reply")
	}
	if line[0] != ':' {
		return 0, fmt.Errorf("spider: unexpected redis reply: %s", line)
	}
	return strconv.ParseInt(line[1:], 10, 64)
}
