package danmaku

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
)

type DanDanXML struct {
	// root element
	XMLName xml.Name `xml:"i"`
	// metadata
	ChatServer     string             `xml:"chatserver"`
	ChatID         string             `xml:"chatid"`
	Mission        int                `xml:"mission"`
	MaxLimit       int                `xml:"maxlimit"`
	Source         string             `xml:"source"`
	SourceProvider string             `xml:"sourceprovider"`
	DataSize       int                `xml:"datasize"`
	Danmaku        []DanDanXMLDanmaku `xml:"d"`
}

type DanDanXMLDanmaku struct {
	// p 属性 时间,模式,颜色,用户id
	Attributes string `xml:"p,attr"`
	Content    string `xml:",chardata"`
}

// NewDanDanXML 只保留有时间的弹幕 没有时间的弹幕无法回放
func NewDanDanXML(platform Platform, id string, comments []Comment) *DanDanXML {
	var result = &DanDanXML{
		ChatServer:     string(platform),
		ChatID:         id,
		Source:         "k-v",
		SourceProvider: string(platform),
		Danmaku:        make([]DanDanXMLDanmaku, 0, len(comments)),
	}
	for _, c := range comments {
		if !c.HasOffset {
			continue
		}
		result.Danmaku = append(result.Danmaku, DanDanXMLDanmaku{
			Attributes: c.GenDandanAttribute(),
			Content:    c.Text,
		})
	}
	result.DataSize = len(result.Danmaku)
	result.MaxLimit = result.DataSize
	return result
}

// WriteToFile 写入 fullPath/filename.xml 目录不存在时自动创建
func (x *DanDanXML) WriteToFile(fullPath, filename string, indent bool) (string, error) {
	if fullPath == "" || filename == "" {
		return "", fmt.Errorf("empty save path or filename")
	}
	if err := os.MkdirAll(fullPath, os.ModePerm); err != nil {
		return "", fmt.Errorf("create path %s error: %w", fullPath, err)
	}

	var xmlData []byte
	var err error
	if indent {
		xmlData, err = xml.MarshalIndent(x, "", "    ")
	} else {
		xmlData, err = xml.Marshal(x)
	}
	if err != nil {
		return "", fmt.Errorf("marshal error: %w", err)
	}

	// xml.Marshal 不会添加声明头
	finalXml := []byte(xml.Header)
	finalXml = append(finalXml, xmlData...)
	writeFile := filepath.Join(fullPath, filename+".xml")
	if err = os.WriteFile(writeFile, finalXml, 0644); err != nil {
		return "", fmt.Errorf("%s write fail: %w", writeFile, err)
	}
	return writeFile, nil
}
