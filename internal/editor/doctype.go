package editor

// Extension classification for the external editor's documentType field.
// Fixed lookup, mirrors the editor's own grouping.
var documentTypes = map[string]string{
	"doc":   "word",
	"docx":  "word",
	"docxf": "word",
	"oform": "word",
	"odt":   "word",
	"rtf":   "word",
	"txt":   "word",
	"xls":   "cell",
	"xlsx":  "cell",
	"ods":   "cell",
	"csv":   "cell",
	"ppt":   "slide",
	"pptx":  "slide",
	"odp":   "slide",
	"pdf":   "pdf",
}

// editableExtensions are the formats the editor can write back.
var editableExtensions = map[string]bool{
	"docx":  true,
	"xlsx":  true,
	"pptx":  true,
	"docxf": true,
	"pdf":   true,
}

// DocumentType classifies a file extension for the editor. Unknown
// extensions fall back to "word" so the editor at least opens a viewer.
func DocumentType(ext string) string {
	if dt, ok := documentTypes[ext]; ok {
		return dt
	}
	return "word"
}

// Editable reports whether the editor can save this extension back.
func Editable(ext string) bool {
	return editableExtensions[ext]
}

// FormContainer reports whether the extension denotes a form-field
// container that needs conversion into a fillable artifact.
func FormContainer(ext string) bool {
	return ext == "docxf"
}
