/*
go-roihead implements the Region of Interest processing stage of a two
stage Mask R-CNN style object detector in pure Go.

Given a backbone feature map and a set of candidate region proposals the
ROI head either computes training losses by matching and subsampling the
proposals against ground truth, or decodes and filters the box predictions
into final detections, optionally predicting a segmentation mask per
instance.

The feature pooler and prediction heads are injected as interfaces so any
backbone or accelerator runtime can drive the head.  Reference
implementations are provided in the head subdirectory, box geometry and
coding primitives in box, matching and sampling in match, losses in loss,
and detection/mask rendering helpers in render.

See example code and usage in the example subdirectory.
*/
package roihead
