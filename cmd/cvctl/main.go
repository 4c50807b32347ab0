package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"cvPortal/internal/cv"
	"cvPortal/internal/cvclient"
)

const usage = `用法: cvctl [flags] <command> [args]

命令:
  list              列出当前账号的 CV
  get <id>          输出一份 CV 的 JSON
  delete <id>       删除 CV
  push <file>       上传 CV 文件（无 id 时新建）
  validate <file>   本地执行保存前校验，不访问服务端
`

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cvctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	var (
		apiURL  = fs.String("api", envOr("CVPORTAL_API_URL", "http://localhost:8080"), "API 地址（默认读 CVPORTAL_API_URL）")
		token   = fs.String("token", os.Getenv("CVPORTAL_TOKEN"), "访问令牌（默认读 CVPORTAL_TOKEN）")
		timeout = fs.Duration("timeout", 15*time.Second, "请求超时")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	if cmd == "validate" {
		return exit(stderr, validateFile(rest, stdout))
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	client := cvclient.New(*apiURL, *token, nil)

	var err error
	switch cmd {
	case "list":
		err = list(ctx, client, stdout)
	case "get":
		err = get(ctx, client, rest, stdout)
	case "delete":
		err = remove(ctx, client, rest, stdout)
	case "push":
		err = push(ctx, client, rest, stdout)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		fs.Usage()
		return 2
	}
	return exit(stderr, err)
}

func exit(stderr io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintln(stderr, "error:", err)
	return 1
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func oneArg(args []string, name string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", fmt.Errorf("expected exactly one %s", name)
	}
	return strings.TrimSpace(args[0]), nil
}

func list(ctx context.Context, client *cvclient.Client, stdout io.Writer) error {
	items, err := client.List(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tVISIBILITY\tPDF\tUPDATED")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n", it.ID, it.Title, it.Status, it.Visibility, it.HasPDF, it.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func get(ctx context.Context, client *cvclient.Client, args []string, stdout io.Writer) error {
	id, err := oneArg(args, "cv id")
	if err != nil {
		return err
	}
	p, err := client.Fetch(ctx, cv.ID(id))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func remove(ctx context.Context, client *cvclient.Client, args []string, stdout io.Writer) error {
	id, err := oneArg(args, "cv id")
	if err != nil {
		return err
	}
	if err := client.Delete(ctx, cv.ID(id)); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "deleted %s\n", id)
	return nil
}

func push(ctx context.Context, client *cvclient.Client, args []string, stdout io.Writer) error {
	p, err := readPayload(args)
	if err != nil {
		return err
	}
	res, err := client.Save(ctx, p)
	if err != nil {
		return err
	}
	verb := "updated"
	if res.Created {
		verb = "created"
	}
	fmt.Fprintf(stdout, "%s %s\n", verb, res.ID)
	return nil
}

func validateFile(args []string, stdout io.Writer) error {
	p, err := readPayload(args)
	if err != nil {
		return err
	}
	if err := cv.Validate(cv.FromPayload(p)); err != nil {
		var verr *cv.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("block %s (%s): %s", verr.BlockID, verr.Type, verr.Message)
		}
		return err
	}
	fmt.Fprintln(stdout, "ok")
	return nil
}

// readPayload 读取 CV 文件，layout 与 blocks 可以是结构化 JSON 或 JSON 字符串。
func readPayload(args []string) (cv.Payload, error) {
	path, err := oneArg(args, "file")
	if err != nil {
		return cv.Payload{}, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cv.Payload{}, fmt.Errorf("read %s: %w", path, err)
	}
	var w cv.WirePayload
	if err := json.Unmarshal(raw, &w); err != nil {
		return cv.Payload{}, fmt.Errorf("parse %s: %w", path, err)
	}
	p := cv.DecodeWire(w)
	if len(p.Blocks) == 0 {
		return cv.Payload{}, fmt.Errorf("%s has no blocks", path)
	}
	return p, nil
}
