package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка - на первое время
	UnknownCode Code = 0

	// Ввод-вывод: счётчик, лог, карта точек, IR-файлы
	IOInfo              Code = 4000
	IOCounterUnreadable Code = 4001
	IOLogUnopenable     Code = 4002
	IOSiteMapUnopenable Code = 4003
	IOCounterPersist    Code = 4004
	IOLogWrite          Code = 4005
	IOModuleUnreadable  Code = 4006
	IOModuleUnwritable  Code = 4007
	IOSiteMapWrite      Code = 4008
	IOTargetsUnreadable Code = 4009

	// Инструментирование
	InsInfo             Code = 5000
	InsTargetMatched    Code = 5001
	InsSiteLogged       Code = 5002
	InsMetadataAbort    Code = 5003
	InsUnsupportedType  Code = 5004
	InsTargetUnmatched  Code = 5005
	InsCounterLoaded    Code = 5006
	InsCounterPersisted Code = 5007
	InsCounterWrapped   Code = 5008
	InsSkipped          Code = 5009
	InsDeclConflict     Code = 5010
	InsNoInsertionPoint Code = 5011

	// Цели
	TgtInfo      Code = 6000
	TgtMalformed Code = 6001
	TgtDuplicate Code = 6002
)

var (
	codeDescription = map[Code]string{
		UnknownCode:         "Unknown error",
		IOInfo:              "I/O information",
		IOCounterUnreadable: "Identifier counter could not be read",
		IOLogUnopenable:     "Trace-id log could not be opened",
		IOSiteMapUnopenable: "Site map could not be opened",
		IOCounterPersist:    "Identifier counter could not be saved",
		IOLogWrite:          "Trace-id log write failed",
		IOModuleUnreadable:  "IR module could not be read",
		IOModuleUnwritable:  "IR module could not be written",
		IOSiteMapWrite:      "Site map write failed",
		IOTargetsUnreadable: "Targets file could not be read",
		InsInfo:             "Instrumentation information",
		InsTargetMatched:    "Target matched",
		InsSiteLogged:       "Value logged",
		InsMetadataAbort:    "Metadata operand stops the instruction",
		InsUnsupportedType:  "Value type cannot be logged",
		InsTargetUnmatched:  "Target not found",
		InsCounterLoaded:    "Identifier counter loaded",
		InsCounterPersisted: "Identifier counter saved",
		InsCounterWrapped:   "Identifier counter wrapped",
		InsSkipped:          "Instruction skipped",
		InsDeclConflict:     "Conflicting trace_value declaration",
		InsNoInsertionPoint: "Block cannot take logging calls",
		TgtInfo:             "Target information",
		TgtMalformed:        "Malformed target",
		TgtDuplicate:        "Duplicate target",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("INS%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("TGT%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
