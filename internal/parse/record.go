package parse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// ContentKind tags which arm of the message content union is populated.
type ContentKind int

const (
	ContentEmpty  ContentKind = iota
	ContentText               // content was a bare string
	ContentBlocks             // content was a list of typed blocks
)

// BlockKind tags one block of list-shaped content.
type BlockKind int

const (
	BlockUnknown BlockKind = iota
	BlockText
	BlockToolUse
	BlockToolResult
)

type Block struct {
	Kind  BlockKind
	Text  string       // BlockText
	Name  string       // BlockToolUse
	Input gjson.Result // BlockToolUse, raw input object
}

type Content struct {
	Kind   ContentKind
	Text   string
	Blocks []Block
}

// Record is one line of a transcript file. Lines that are blank or not a
// JSON object keep only Line and Raw.
type Record struct {
	Line       int
	Raw        string
	Valid      bool
	Type       string
	UUID       string
	ParentUUID string
	Timestamp  string
	IsMeta     bool
	HasMessage bool
	Cwd        string
	Content    Content
}

// readRecords reads every line of path, preserving the raw text verbatim.
func readRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	r := bufio.NewReaderSize(f, 64*1024)
	lineNum := 0
	for {
		line, err := r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("line %d: %w", lineNum+1, err)
		}
		if line == "" && err != nil {
			break
		}
		lineNum++
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")
		records = append(records, decodeRecord(lineNum, line))
		if err != nil {
			break
		}
	}
	return records, nil
}

func decodeRecord(lineNum int, raw string) Record {
	rec := Record{Line: lineNum, Raw: raw}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || !gjson.Valid(trimmed) {
		return rec
	}
	v := gjson.Parse(trimmed)
	if !v.IsObject() {
		return rec
	}

	rec.Valid = true
	rec.Type = stringField(v, "type")
	rec.UUID = stringField(v, "uuid")
	rec.ParentUUID = stringField(v, "parentUuid")
	rec.Timestamp = stringField(v, "timestamp")
	rec.Cwd = stringField(v, "cwd")
	rec.IsMeta = v.Get("isMeta").Bool()

	msg := v.Get("message")
	rec.HasMessage = msg.IsObject()
	if rec.HasMessage {
		rec.Content = decodeContent(msg.Get("content"))
	}
	return rec
}

func stringField(v gjson.Result, key string) string {
	f := v.Get(key)
	if f.Type != gjson.String {
		return ""
	}
	return f.Str
}

func decodeContent(c gjson.Result) Content {
	switch {
	case c.Type == gjson.String:
		return Content{Kind: ContentText, Text: c.Str}
	case c.IsArray():
		var blocks []Block
		c.ForEach(func(_, item gjson.Result) bool {
			blocks = append(blocks, decodeBlock(item))
			return true
		})
		return Content{Kind: ContentBlocks, Blocks: blocks}
	default:
		return Content{}
	}
}

func decodeBlock(item gjson.Result) Block {
	// bare strings inside a block list count as text
	if item.Type == gjson.String {
		return Block{Kind: BlockText, Text: item.Str}
	}
	if !item.IsObject() {
		return Block{}
	}
	switch stringField(item, "type") {
	case "text":
		return Block{Kind: BlockText, Text: stringField(item, "text")}
	case "tool_use":
		return Block{Kind: BlockToolUse, Name: stringField(item, "name"), Input: item.Get("input")}
	case "tool_result":
		return Block{Kind: BlockToolResult}
	default:
		return Block{}
	}
}
