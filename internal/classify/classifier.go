package classify

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"github.com/itsreborn2/intellio-sub004/internal/gateway/provider"
	"github.com/itsreborn2/intellio-sub004/internal/logger"
	"github.com/itsreborn2/intellio-sub004/internal/pkg/jsonutil"
	"github.com/itsreborn2/intellio-sub004/internal/prompt"
	"github.com/itsreborn2/intellio-sub004/internal/types"
)

// Completer 是分类器消费的语言生成接口。
type Completer interface {
	Complete(ctx context.Context, payload provider.ChatPayload) (string, error)
}

// 模型输出必须满足的结构。不满足即按解析失败处理。
const classificationSchema = `{
  "type": "object",
  "required": ["intent", "detail_level", "capabilities"],
  "properties": {
    "intent": {"type": "string"},
    "detail_level": {"type": "string"},
    "capabilities": {
      "type": "array",
      "items": {"type": "string"}
    }
  }
}`

// Classifier 把自由文本问题映射为意图 + 粒度 + 能力集合。
// 任何一步失败都回落到缺省分类（仅 message-archive），绝不抛错。
type Classifier struct {
	llm    Completer
	schema *jsonschema.Schema
}

func New(llm Completer) *Classifier {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("classification.json", strings.NewReader(classificationSchema)); err != nil {
		panic(err)
	}
	return &Classifier{
		llm:    llm,
		schema: compiler.MustCompile("classification.json"),
	}
}

// Classify 执行分类。失败时返回缺省分类，并把失败原因写进 errs 回调。
func (c *Classifier) Classify(ctx context.Context, query string, entitiesHint types.Entities, history []types.Turn) (types.Classification, error) {
	if c.llm == nil {
		return types.DefaultClassification(), errMalformed("no model available")
	}
	system, user := prompt.ClassifyPrompts(query, entitiesHint, history)
	raw, err := c.llm.Complete(ctx, provider.ChatPayload{
		System:  system,
		User:    user,
		Purpose: "classify",
	})
	if err != nil {
		logger.Warnf("[classify] completion failed: %v", err)
		return types.DefaultClassification(), err
	}
	cls, err := c.parse(raw)
	if err != nil {
		logger.Warnf("[classify] parse failed, falling back to default: %v", err)
		return types.DefaultClassification(), err
	}
	return cls, nil
}

func (c *Classifier) parse(raw string) (types.Classification, error) {
	blob, ok := jsonutil.ExtractJSON(raw)
	if !ok {
		return types.Classification{}, errMalformed("no json found")
	}
	var doc any
	if err := json.Unmarshal([]byte(blob), &doc); err != nil {
		return types.Classification{}, errMalformed(err.Error())
	}
	if err := c.schema.Validate(doc); err != nil {
		return types.Classification{}, errMalformed(err.Error())
	}
	parsed := gjson.Parse(blob)
	cls := types.Classification{
		Intent:      types.ParseIntent(parsed.Get("intent").String()),
		DetailLevel: types.ParseDetailLevel(parsed.Get("detail_level").String()),
	}
	seen := make(map[types.CapabilityTag]bool)
	parsed.Get("capabilities").ForEach(func(_, value gjson.Result) bool {
		tag, ok := types.ParseCapability(value.String())
		if ok && !seen[tag] {
			seen[tag] = true
			cls.RequiredCapabilities = append(cls.RequiredCapabilities, tag)
		}
		return true
	})
	if len(cls.RequiredCapabilities) == 0 {
		return types.Classification{}, errMalformed("empty capability set")
	}
	// 粒度决定能力数上限：brief 裁剪到 2，粒度越高上限越大
	if max := cls.DetailLevel.MaxCapabilities(); len(cls.RequiredCapabilities) > max {
		cls.RequiredCapabilities = cls.RequiredCapabilities[:max]
	}
	return cls, nil
}

type malformedError string

func errMalformed(msg string) error { return malformedError(msg) }

func (e malformedError) Error() string { return "malformed classification: " + string(e) }
