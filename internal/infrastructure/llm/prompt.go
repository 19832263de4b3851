package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
)

const defaultPolicy = `你是一个专业的文档结构化提取专家。你的目标是精准、客观地从非结构化文本中提取关键信息。
请遵循以下原则：
1. 保持原文数据的真实性，对于金额、日期、人名不要进行模糊处理。
2. 金额统一转换为纯数字形式（如 "五万元" -> 50000）。
3. 日期统一格式为 "YYYY-MM-DD"。
4. 如果原文中未提及某字段，请返回 null，不要编造数据。`

var policies = map[domain.DocType]string{
	domain.DocTypeLoanAgreement: `你是一个金融法律专家，专门处理信贷与担保合同。
任务：提取借款合同的关键要素。
注意事项：
- 精准区分"借款人"与"担保人"。
- 利率提取需区分"年利率"与"罚息利率"，并保留百分号（如 6.5%）。
- 借款期限需精确提取起始日和到期日。
- 担保方式可能包含：抵押、质押、保证。请提取具体的担保人名称。`,
	domain.DocTypeCourtRuling: `你是一个法律文书分析专家，专门处理法院判决书与裁定书。
任务：提取司法判决结果。
注意事项：
- 准确提取"案号"（通常在文首）。
- 区分"原告"与"被告"，如果有多个被告，请列出列表。
- 重点提取"判决主文"中的金额信息，区分"本金"、"利息"、"案件受理费"。
- 判决日期以文末落款日期为准。`,
}

const (
	noSkillsLine       = "根据输出 Schema 提取所有相关字段。"
	rewriteSampleChars = 2000
)

func basePolicy(docType domain.DocType) string {
	if policy, ok := policies[docType]; ok {
		return policy
	}
	return defaultPolicy
}

// compileInstruction builds the system instruction for an extraction run.
func compileInstruction(rule domain.ExtractionRule) string {
	var b strings.Builder
	b.WriteString(basePolicy(rule.DocType))
	b.WriteString("\n\n用户自定义指令：\n")
	b.WriteString(rule.SystemInstruction)
	b.WriteString("\n\n特定提取技能 (Specific Extraction Skills):\n")

	if len(rule.Skills) == 0 {
		b.WriteString(noSkillsLine)
		b.WriteString("\n")
		return b.String()
	}
	for idx, skill := range rule.Skills {
		fmt.Fprintf(&b, "%d. [%s] %s: %s\n", idx+1, skill.Category.Label(), skill.Name, skill.Description)
		if skill.Example != "" || skill.OutputExample != "" {
			fmt.Fprintf(&b, "   参考样例: 遇到类似 \"%s\" 的表述，应提取为 -> \"%s\"\n",
				orEllipsis(skill.Example), orEllipsis(skill.OutputExample))
		}
	}
	return b.String()
}

func buildExtractionPrompt(text, schema string) string {
	return fmt.Sprintf(`文档内容：
%s

任务：
根据下面提供的 Schema 提取数据，严格遵循系统指令。

输出 Schema:
%s

输出格式：
返回一个严格合法的 JSON 对象。
对于每个字段，提供一个对象结构：{ "value": string | number, "confidence": number }。
若未找到，value 设为 null。`, text, schema)
}

func buildClassificationPrompt(snippet string) string {
	return fmt.Sprintf(`分析以下文档片段并将其分类为以下不良资产业务文档类型之一：
Loan Agreement (借款合同),
Mortgage Contract (抵押担保合同),
Court Ruling (法院判决/裁定书),
Asset Evaluation (资产评估报告),
Transfer Agreement (债权转让协议)。

仅返回类别英文名称（如 Loan Agreement）。如果不确定，返回 Unknown。

片段： "%s..."`, snippet)
}

func buildRegionPrompt(docType domain.DocType, text string, targets []string) string {
	fields := strings.Join(targets, ", ")
	return fmt.Sprintf(`%s

当前任务：局部侦测与补全。

背景：
用户认为之前的提取过程遗漏或错误提取了以下字段：%s。
用户框选了以下原文段落，认为其中包含正确答案。

选定原文段落：
"%s"

请分析上述段落，尝试提取以下字段的值：%s。

返回格式 (JSON):
{
  "found": boolean,
  "data": {
    "字段名": "提取值"
  }
}
如果某个字段在段落中未找到，请在 data 中省略或设为 null。`, basePolicy(docType), fields, text, fields)
}

func buildRefinePrompt(docType domain.DocType, text string, keys []string, snapshot map[string]any, badCases []domain.BadCase) string {
	var feedback strings.Builder
	for idx, bc := range badCases {
		kind := "错提 (Incorrect)"
		if bc.Type == domain.BadCaseMissed {
			kind = "漏提 (Missed)"
		}
		note := bc.Note
		if note == "" {
			note = "无"
		}
		fmt.Fprintf(&feedback, "%d. 类型：%s。相关原文：\"%s\"。备注：%s\n", idx+1, kind, bc.Text, note)
	}

	return fmt.Sprintf(`%s

任务：二次提取与修正 (Secondary Extraction Refinement)。

背景：
用户对初步提取结果进行了审核，并标记了“漏提”或“错提”的原文片段（Bad Cases）。
请基于用户的反馈和原文，修正并补全提取结果。

文档内容：
%s

当前提取结果 (JSON):
%s

用户反馈 (Bad Cases):
%s
要求：
1. 对于“错提”项，请根据原文修正对应字段的值。
2. 对于“漏提”项，请判断该信息属于哪个现有字段（若为null）或是否需要提取到合适字段。
3. 保持未受影响的字段不变。

输出格式：
返回完整的、修正后的 JSON 对象。格式与“当前提取结果”一致。
不要改变字段 Key。`, basePolicy(docType), text, orderedJSON(keys, snapshot), feedback.String())
}

func buildRewritePrompt(sample, instruction string, incorrect, corrected map[string]any) string {
	return fmt.Sprintf(`我有一条针对不良资产文档的提取规则未能正确提取数据。

原始文档片段：
"%s..."

当前系统指令：
"%s"

错误结果：
模型提取了：%s

修正结果（人工核实）：
用户手动修正为：%s

任务：
重写系统指令（总体概述），使其更加稳健以避免此类错误，特别注意金融数字、日期和法律条款的准确性。
仅返回新的系统指令文本。`, truncateRunes(sample, rewriteSampleChars), instruction, compactJSON(incorrect), compactJSON(corrected))
}

func buildSkillPrompt(skill domain.ExtractionSkill) string {
	contextLine := ""
	if skill.Example != "" {
		contextLine = fmt.Sprintf("上下文（文档中的示例文本）： \"%s\"\n", skill.Example)
	}
	return fmt.Sprintf(`你是一位精通大型语言模型提示词（Prompt）编写的专家，专注于金融与法律文档处理。

用户输入的描述： "%s"
%s
任务：将用户的输入重写为一条精确、高质量的指令，用于让 AI 从不良资产相关文档中提取这些特定信息。
保持简洁但稳健。直接输出优化后的指令，不要包含引号。`, skill.Description, contextLine)
}

func buildSynthesisPrompt(description string) string {
	return fmt.Sprintf(`你是一个不良资产文档处理系统的架构师。

用户需求：
"%s"

任务：
基于用户的需求（可能是一个字段列表，或者一段描述），生成一个完整的提取规则配置。
包含以下三个部分：
1. systemInstruction: 系统提示词，指导AI如何处理此类文档。
2. skills: 一个技能数组，每个技能包含 { name, category, description, outputExample }。Category 只能是: 'Date' | 'Amount' | 'Entity' | 'Text' | 'Boolean' | 'Other'。
3. schema: 对应的 JSON Schema 对象。

请返回纯 JSON 格式：
{
  "systemInstruction": "...",
  "skills": [ ... ],
  "schema": { ... }
}`, description)
}

// orderedJSON renders snapshot as an indented object following keys.
func orderedJSON(keys []string, snapshot map[string]any) string {
	var b strings.Builder
	b.WriteString("{\n")
	for idx, key := range keys {
		k, _ := json.Marshal(key)
		v, err := json.Marshal(snapshot[key])
		if err != nil {
			v = []byte("null")
		}
		fmt.Fprintf(&b, "  %s: %s", k, v)
		if idx < len(keys)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String()
}

func compactJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func orEllipsis(s string) string {
	if s == "" {
		return "..."
	}
	return s
}

func truncateRunes(s string, limit int) string {
	count := 0
	for idx := range s {
		if count == limit {
			return s[:idx]
		}
		count++
	}
	return s
}
