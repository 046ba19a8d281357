package ocr

import "strings"

// Result: ответ OCR-сервиса. Поля не валидируются: пустой text допустим.
type Result struct {
	Text  string `json:"text"`
	Image string `json:"image"` // base64 или data:URI
}

type ModelSize string

const (
	ModelTiny   ModelSize = "Tiny"
	ModelSmall  ModelSize = "Small"
	ModelBase   ModelSize = "Base"
	ModelLarge  ModelSize = "Large"
	ModelGundam ModelSize = "Gundam (Recommended)"
)

var modelSizes = []ModelSize{ModelTiny, ModelSmall, ModelBase, ModelLarge, ModelGundam}

func (m ModelSize) Valid() bool {
	for _, v := range modelSizes {
		if v == m {
			return true
		}
	}
	return false
}

type TaskType string

const (
	TaskFreeOCR  TaskType = "📝 Free OCR"
	TaskMarkdown TaskType = "📄 Convert to Markdown"
	TaskFigure   TaskType = "📈 Parse Figure"
	TaskLocate   TaskType = "🔍 Locate Object by Reference"
)

var taskTypes = []TaskType{TaskFreeOCR, TaskMarkdown, TaskFigure, TaskLocate}

func (t TaskType) Valid() bool {
	for _, v := range taskTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Options: необязательные параметры запроса. Пустое поле = не передаётся.
type Options struct {
	ModelSize ModelSize
	TaskType  TaskType
	RefText   string // только для TaskLocate
}

func (o *Options) IsZero() bool {
	return o == nil || (o.ModelSize == "" && o.TaskType == "" && o.RefText == "")
}

// ParseModelSize принимает точное имя пресета или короткий алиас (tiny, gundam, ...).
func ParseModelSize(s string) (ModelSize, bool) {
	s = strings.TrimSpace(s)
	if m := ModelSize(s); m.Valid() {
		return m, true
	}
	switch strings.ToLower(s) {
	case "tiny":
		return ModelTiny, true
	case "small":
		return ModelSmall, true
	case "base":
		return ModelBase, true
	case "large":
		return ModelLarge, true
	case "gundam", "recommended":
		return ModelGundam, true
	}
	return "", false
}

// ParseTaskType принимает точное имя режима или алиас (free, markdown, figure, locate).
func ParseTaskType(s string) (TaskType, bool) {
	s = strings.TrimSpace(s)
	if t := TaskType(s); t.Valid() {
		return t, true
	}
	switch strings.ToLower(s) {
	case "free", "ocr", "free-ocr":
		return TaskFreeOCR, true
	case "markdown", "md":
		return TaskMarkdown, true
	case "figure", "parse-figure":
		return TaskFigure, true
	case "locate", "ref", "locate-object":
		return TaskLocate, true
	}
	return "", false
}

func ModelSizes() []ModelSize { return append([]ModelSize(nil), modelSizes...) }

func TaskTypes() []TaskType { return append([]TaskType(nil), taskTypes...) }
