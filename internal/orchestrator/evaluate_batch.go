package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/knoguchi/rag/internal/evaluator"
	"github.com/knoguchi/rag/internal/ragerr"
)

const (
	llmSheetName       = "LLM Eval"
	retrieverSheetName = "Retriever Eval"
)

var evalMetrics = []string{"Helpfulness", "Correctness", "Coherence", "Complexity", "Verbosity"}

// EvaluateBatch runs answerHybrid for every (Question, Ground Truth) row of
// the "LLM Eval" sheet, scores the result against "Retriever Eval", and
// returns a new workbook with both sheets' response/metric columns filled
// in. Columns are grounded in
// original_source/app/controllers/pdf_controller.py::evaluate_file.
func (o *RAGOrchestrator) EvaluateBatch(ctx context.Context, brainID uuid.UUID, pdfIDs []uuid.UUID, eval *evaluator.Evaluator, xlsxBytes []byte) ([]byte, error) {
	f, err := excelize.OpenReader(bytes.NewReader(xlsxBytes))
	if err != nil {
		return nil, ragerr.Wrap(ragerr.Invalid, "open xlsx", err)
	}
	defer f.Close()

	llmRows, err := f.GetRows(llmSheetName)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.Invalid, "missing LLM Eval sheet", err)
	}
	if _, err := f.GetRows(retrieverSheetName); err != nil {
		return nil, ragerr.Wrap(ragerr.Invalid, "missing Retriever Eval sheet", err)
	}
	if len(llmRows) == 0 {
		return nil, ragerr.New(ragerr.Invalid, "LLM Eval sheet has no header row")
	}

	retrieverHeader, err := f.GetRows(retrieverSheetName)
	if err != nil || len(retrieverHeader) == 0 {
		return nil, ragerr.New(ragerr.Invalid, "Retriever Eval sheet has no header row")
	}

	llmCols := headerIndex(llmRows[0])
	retrieverCols := headerIndex(retrieverHeader[0])

	questionCol, ok := llmCols["Question"]
	if !ok {
		return nil, ragerr.New(ragerr.Invalid, "LLM Eval sheet missing Question column")
	}
	groundTruthCol, ok := llmCols["Ground Truth"]
	if !ok {
		return nil, ragerr.New(ragerr.Invalid, "LLM Eval sheet missing Ground Truth column")
	}

	for rowIdx := 1; rowIdx < len(llmRows); rowIdx++ {
		excelRow := rowIdx + 1 // llmRows is 0-indexed with the header at 0; Excel rows are 1-indexed
		question := cellAt(llmRows[rowIdx], questionCol)
		groundTruth := cellAt(llmRows[rowIdx], groundTruthCol)
		if question == "" {
			continue
		}

		answer, err := o.AnswerHybrid(ctx, brainID, Request{Query: question, SelectedPDFs: pdfIDs})
		if err != nil {
			continue
		}

		llmScore, retrieverScore, err := eval.Evaluate(ctx, answer.RetrievedContext, question, answer.Response, groundTruth)
		if err != nil {
			continue
		}

		setRowValues(f, llmSheetName, llmCols, excelRow, "LLM Response", answer.Response, llmScore)
		setRowValues(f, retrieverSheetName, retrieverCols, excelRow, "Retriever Response", answer.RetrievedContext, retrieverScore)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, ragerr.Wrap(ragerr.Internal, "write xlsx", err)
	}
	return buf.Bytes(), nil
}

func setRowValues(f *excelize.File, sheet string, cols map[string]string, row int, responseHeader, response, scores string) {
	if col, ok := cols[responseHeader]; ok {
		_ = f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), response)
	}
	parsed := evaluator.ParseScores(scores)
	for _, metric := range evalMetrics {
		col, ok := cols[metric]
		if !ok {
			continue
		}
		_ = f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), parsed[strings.ToLower(metric)])
	}
}

// headerIndex maps header -> column letter, read from a sheet's first row.
func headerIndex(header []string) map[string]string {
	cols := make(map[string]string, len(header))
	for i, name := range header {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			continue
		}
		cols[name] = col
	}
	return cols
}

func cellAt(row []string, col string) string {
	idx, err := excelize.ColumnNameToNumber(col)
	if err != nil || idx-1 >= len(row) {
		return ""
	}
	return row[idx-1]
}
