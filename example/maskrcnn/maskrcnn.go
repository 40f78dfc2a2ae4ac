/*
Example code showing how to run the Mask R-CNN box and mask heads over a
precomputed backbone feature map and region proposals, then render the
resulting instance segmentation on the source image
*/
package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/detkit/go-roihead"
	"github.com/detkit/go-roihead/box"
	"github.com/detkit/go-roihead/head"
	"github.com/detkit/go-roihead/render"
	"github.com/detkit/go-roihead/tensor"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
)

const (
	// Pooled feature size for the box head
	BoxPoolSize = 7
	// Pooled feature size for the mask head
	MaskPoolSize = 14
	// Spatial size of the predicted masks
	MaskSize = 14
	// Size of optional TTF font
	TTFFontSize = 20
)

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	weightsDir := flag.String("w", "../data/maskrcnn-weights", "Directory containing the exported float16 head weights")
	featFile := flag.String("f", "../data/catdog-features.f16", "Backbone feature map as float16 values in CHW order")
	featDims := flag.String("d", "256x20x15", "Feature map dimensions as CxHxW")
	propFile := flag.String("b", "../data/catdog-proposals.txt", "Region proposals file with one x1 y1 x2 y2 box per line")
	imgFile := flag.String("i", "../data/catdog.jpg", "Image file the features and proposals were computed from")
	labelFile := flag.String("l", "../data/coco_91_labels_list.txt", "Text file containing model labels")
	saveFile := flag.String("o", "../data/catdog-maskrcnn-out.jpg", "The output JPG file with instance segmentation markers")
	renderFormat := flag.String("r", "outline", "The rendering format used for instance segmentation [outline|mask|boxes]")
	scoreThresh := flag.Float64("s", 0.5, "Minimum class score for a detection to be kept")
	ttfFile := flag.String("t", "", "Optional TTF font used for detection labels, supports non Latin class names")

	flag.Parse()

	// load in model class names
	classNames, err := roihead.LoadLabels(*labelFile)

	if err != nil {
		log.Fatal("Error loading model labels: ", err)
	}

	// load backbone feature map
	var c, fh, fw int

	_, err = fmt.Sscanf(*featDims, "%dx%dx%d", &c, &fh, &fw)

	if err != nil {
		log.Fatal("Error parsing feature dimensions: ", err)
	}

	features, err := loadFloat16Tensor(*featFile, c, fh, fw)

	if err != nil {
		log.Fatal("Error loading feature map: ", err)
	}

	// load region proposals
	proposals, err := loadProposals(*propFile)

	if err != nil {
		log.Fatal("Error loading proposals: ", err)
	}

	// build the box and mask heads from the exported weights
	r, err := buildHead(*weightsDir, c, len(classNames), float32(*scoreThresh))

	if err != nil {
		log.Fatal("Error building detection head: ", err)
	}

	// optionally load a TTF font face for drawing detection labels
	var ttfFont *render.TTFFont

	if *ttfFile != "" {
		ttfFont, err = render.LoadTTFFont(*ttfFile, TTFFontSize)

		if err != nil {
			log.Fatal("Error loading TTF font: ", err)
		}
	}

	// load image
	img := gocv.IMRead(*imgFile, gocv.IMReadColor)

	if img.Empty() {
		log.Fatal("Error reading image from: ", *imgFile)
	}

	defer img.Close()

	imgW := float32(img.Cols())
	imgH := float32(img.Rows())

	start := time.Now()

	// run the heads over the proposals
	result, _, err := r.Forward(features, proposals, imgW, imgH, nil)

	if err != nil {
		log.Fatal("Detection head failed with error: ", err)
	}

	endForward := time.Now()

	// merge the per detection masks into a full image segment mask
	segMask, err := render.PasteMasks(result.Masks, result.Detections,
		img.Cols(), img.Rows(), 0.5)

	if err != nil {
		log.Fatal("Error pasting segment masks: ", err)
	}

	endPaste := time.Now()

	switch *renderFormat {
	case "mask":
		// draw segmentation mask
		render.SegmentMask(&img, segMask, 0.5)

		drawDetections(&img, result.Detections, classNames, ttfFont)

	case "boxes":
		drawDetections(&img, result.Detections, classNames, ttfFont)

	case "outline":
		fallthrough
	default:
		// default outline
		err = render.SegmentOutline(&img, segMask, result.Detections, 200, 4,
			classNames, render.DefaultFont(), 2)

		if err != nil {
			log.Fatal("Error rendering segment outlines: ", err)
		}
	}

	endRendering := time.Now()

	// output detection boxes to stdout
	for _, det := range result.Detections {
		fmt.Printf("%s @ (%.0f %.0f %.0f %.0f) %f\n", classNames[det.Class],
			det.Box.X1, det.Box.Y1, det.Box.X2, det.Box.Y2, det.Score)
	}

	log.Printf("Speed: head=%s, mask pasting=%s, rendering=%s, total time=%s\n",
		endForward.Sub(start).String(),
		endPaste.Sub(endForward).String(),
		endRendering.Sub(endPaste).String(),
		endRendering.Sub(start).String(),
	)

	// save the result
	if ok := gocv.IMWrite(*saveFile, img); !ok {
		log.Fatal("Failed to save the image")
	}

	log.Printf("Saved instance segmentation result to %s\n", *saveFile)

	log.Println("done")
}

// drawDetections renders the detection boxes, drawing labels with the TTF
// font face when one is loaded and the default Hershey font otherwise
func drawDetections(img *gocv.Mat, detections []roihead.Detection,
	classNames []string, ttf *render.TTFFont) {

	if ttf == nil {
		render.DetectionBoxes(img, detections, classNames,
			render.DefaultFont(), 2)
		return
	}

	for i, det := range detections {

		useClr := render.ClassColor(i)

		rect := image.Rect(int(det.Box.X1), int(det.Box.Y1),
			int(det.Box.X2), int(det.Box.Y2))
		gocv.Rectangle(img, rect, useClr, 2)

		text := fmt.Sprintf("%s %.2f", classNames[det.Class], det.Score)

		err := ttf.PutText(img, text, int(det.Box.X1), int(det.Box.Y1)-4,
			render.White)

		if err != nil {
			log.Printf("Failed to draw TTF label: %v\n", err)
		}
	}
}

// buildHead assembles an inference mode ROIHead from the exported float16
// weight files in the given directory
func buildHead(dir string, channels, numClasses int,
	scoreThresh float32) (*roihead.ROIHead, error) {

	boxIn := channels * BoxPoolSize * BoxPoolSize
	maskIn := channels * MaskPoolSize * MaskPoolSize

	boxPredictor := head.NewFastRCNNPredictor(boxIn, numClasses)

	var err error

	boxPredictor.ClassWeights, err = loadFloat16Dense(
		filepath.Join(dir, "cls_w.f16"), boxIn, numClasses)

	if err != nil {
		return nil, err
	}

	boxPredictor.ClassBias, err = loadFloat16Values(
		filepath.Join(dir, "cls_b.f16"), numClasses)

	if err != nil {
		return nil, err
	}

	boxPredictor.BoxWeights, err = loadFloat16Dense(
		filepath.Join(dir, "box_w.f16"), boxIn, numClasses*4)

	if err != nil {
		return nil, err
	}

	boxPredictor.BoxBias, err = loadFloat16Values(
		filepath.Join(dir, "box_b.f16"), numClasses*4)

	if err != nil {
		return nil, err
	}

	maskOut := numClasses * MaskSize * MaskSize
	maskPredictor := head.NewMaskRCNNPredictor(maskIn, numClasses, MaskSize)

	maskPredictor.Weights, err = loadFloat16Dense(
		filepath.Join(dir, "mask_w.f16"), maskIn, maskOut)

	if err != nil {
		return nil, err
	}

	maskPredictor.Bias, err = loadFloat16Values(
		filepath.Join(dir, "mask_b.f16"), maskOut)

	if err != nil {
		return nil, err
	}

	p := roihead.DefaultParams()
	p.ScoreThreshold = scoreThresh

	r := roihead.NewROIHead(head.NewAlignPooler(BoxPoolSize), boxPredictor, p)
	r.EnableMaskBranch(head.NewAlignPooler(MaskPoolSize), maskPredictor,
		MaskSize)

	return r, nil
}

// loadFloat16Bits reads a file of little endian float16 values and verifies
// the expected count
func loadFloat16Bits(file string, count int) ([]uint16, error) {

	data, err := os.ReadFile(file)

	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", file, err)
	}

	if len(data) != count*2 {
		return nil, fmt.Errorf("%s: expected %d float16 values, file holds %d bytes",
			file, count, len(data))
	}

	bits := make([]uint16, count)

	for i := range bits {
		bits[i] = binary.LittleEndian.Uint16(data[i*2:])
	}

	return bits, nil
}

// loadFloat16Tensor reads a float16 file into a tensor of the given shape
func loadFloat16Tensor(file string, shape ...int) (*tensor.Tensor, error) {

	count := 1

	for _, s := range shape {
		count *= s
	}

	bits, err := loadFloat16Bits(file, count)

	if err != nil {
		return nil, err
	}

	return tensor.FromFloat16(bits, shape...)
}

// loadFloat16Values reads a float16 file into a float32 slice
func loadFloat16Values(file string, count int) ([]float32, error) {

	t, err := loadFloat16Tensor(file, count)

	if err != nil {
		return nil, err
	}

	return t.Data, nil
}

// loadFloat16Dense reads a float16 file into a gonum matrix of the given
// dimensions
func loadFloat16Dense(file string, rows, cols int) (*mat.Dense, error) {

	t, err := loadFloat16Tensor(file, rows, cols)

	if err != nil {
		return nil, err
	}

	data := make([]float64, len(t.Data))

	for i, v := range t.Data {
		data[i] = float64(v)
	}

	return mat.NewDense(rows, cols, data), nil
}

// loadProposals reads region proposal boxes from a text file with one
// x1 y1 x2 y2 box per line
func loadProposals(file string) ([]box.Box, error) {

	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}

	defer f.Close()

	var proposals []box.Box

	scanner := bufio.NewScanner(f)

	for scanner.Scan() {

		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		var x1, y1, x2, y2 float32

		_, err := fmt.Sscanf(line, "%f %f %f %f", &x1, &y1, &x2, &y2)

		if err != nil {
			return nil, fmt.Errorf("malformed proposal line %q: %w", line, err)
		}

		proposals = append(proposals, box.New(x1, y1, x2, y2))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return proposals, nil
}
