// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package render builds the HTML fragments shown for a geocode result: the
// map popup of a located address and the diagnostics panel of a failed one.
package render

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/gimi9/geocode-web/geocode"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// JusoSearchURL is the public address search linked from failed results.
const JusoSearchURL = "https://www.juso.go.kr/support/AddressMainSearch.do?searchKeyword="

const (
	postalZoneLabel = "우편번호(국가기초구역번호)"
	adminDongLabel  = "행정동코드"
	columnHeader    = "컬럼"
	valueHeader     = "값"
)

// Coord formats a coordinate with six decimals.
func Coord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// Label is the text of a result in the list panel: the input address, or
// its coordinates when the address is empty.
func Label(r *geocode.Result) string {
	if r.InputAddress == "" && r.Success() {
		return Coord(*r.Lat) + ", " + Coord(*r.Lng)
	}

	return r.InputAddress
}

// Popup renders the popup of a result: address, coordinates, postal zone
// code, administrative code and the extra columns table when present.
func Popup(r *geocode.Result) string {
	b := element(atom.B)
	b.AppendChild(text(r.InputAddress))

	ul := element(atom.Ul, attr("class", "popup-ul"))

	if r.Success() {
		ul.AppendChild(item(Coord(*r.Lng) + ", " + Coord(*r.Lat)))
	}

	ul.AppendChild(item(postalZoneLabel + ": " + r.PostalZoneCode))
	ul.AppendChild(item(adminDongLabel + ": " + r.AdminDongCode))

	nodes := []*html.Node{b, ul}

	if len(r.ExtraColumns) > 0 {
		table := element(atom.Table, attr("class", "popup-table"))
		table.AppendChild(row(atom.Th, columnHeader, valueHeader))

		for _, col := range r.ExtraColumns {
			table.AppendChild(row(atom.Td, col.Key, col.String()))
		}

		nodes = append(nodes, element(atom.Br), table)
	}

	return renderAll(nodes)
}

// Failure renders the diagnostics of a result that could not be located:
// a link to the public address search, every backend field as "key: value"
// and the tokenization trace one token per line.
func Failure(r *geocode.Result) string {
	link := element(atom.A,
		attr("id", "juso-link"),
		attr("href", JusoSearchURL+url.QueryEscape(r.InputAddress)),
		attr("target", "_blank"),
		attr("rel", "noopener"),
	)
	link.AppendChild(text(r.InputAddress))

	fields := element(atom.Ul, attr("id", "fail-debug"), attr("class", "list-group"))
	tokens := element(atom.Ul, attr("id", "fail-debug-tks"), attr("class", "list-group"))

	for _, f := range r.Fields {
		if f.Key == geocode.KeyDiagnostics {
			for _, tk := range strings.Split(f.String(), "\n") {
				tokens.AppendChild(listGroupItem(tk))
			}

			continue
		}

		fields.AppendChild(listGroupItem(f.Key + ": " + f.String()))
	}

	return renderAll([]*html.Node{link, fields, tokens})
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     attrs,
	}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func item(s string) *html.Node {
	li := element(atom.Li)
	li.AppendChild(text(s))

	return li
}

func listGroupItem(s string) *html.Node {
	li := element(atom.Li, attr("class", "list-group-item"))
	li.AppendChild(text(s))

	return li
}

func row(cell atom.Atom, values ...string) *html.Node {
	tr := element(atom.Tr)

	for _, v := range values {
		c := element(cell)
		c.AppendChild(text(v))
		tr.AppendChild(c)
	}

	return tr
}

func renderAll(nodes []*html.Node) string {
	var sb strings.Builder

	for _, n := range nodes {
		// rendering into a strings.Builder never fails
		_ = html.Render(&sb, n)
	}

	return sb.String()
}
